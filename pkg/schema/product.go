package schema

import "time"

const ProductSchemaTextV1 = `{
	"type": "record",
	"namespace": "inventory",
	"name": "product",
	"fields": [
		{"name": "id", "type": "long"},
		{"name": "title", "type": "string"},
		{"name": "price", "type": "double"},
		{"name": "description", "type": "string"},
		{"name": "category", "type": "string"},
		{"name": "image", "type": "string"},
		{"name": "rating", "type": {
			"type": "record",
			"name": "rating",
			"fields": [
				{"name": "rate", "type": "double"},
				{"name": "count", "type": "long"}
			]
		}}
	]
}`

const ProductChangeSchemaTextV1 = `{
	"type": "record",
	"namespace": "inventory",
	"name": "product_change",
	"fields": [
		{"name": "action", "type": "string"},
		{"name": "product_id", "type": "long"},
		{"name": "title", "type": "string"},
		{"name": "price", "type": "double"},
		{"name": "category", "type": "string"},
		{"name": "occurred_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

const StateSnapshotSchemaTextV1 = `{
	"type": "record",
	"namespace": "inventory",
	"name": "state_snapshot",
	"fields": [
		{"name": "products", "type": {"type": "array", "items": ` + ProductSchemaTextV1 + `}},
		{"name": "search_term", "type": "string"},
		{"name": "selected_category", "type": "string"},
		{"name": "sort_by", "type": "string"},
		{"name": "sort_order", "type": "string"}
	]
}`

type (
	ProductV1 struct {
		ID          int64    `avro:"id"`
		Title       string   `avro:"title"`
		Price       float64  `avro:"price"`
		Description string   `avro:"description"`
		Category    string   `avro:"category"`
		Image       string   `avro:"image"`
		Rating      RatingV1 `avro:"rating"`
	}

	RatingV1 struct {
		Rate  float64 `avro:"rate"`
		Count int64   `avro:"count"`
	}
)

type ProductChangeV1 struct {
	Action     string    `avro:"action"`
	ProductID  int64     `avro:"product_id"`
	Title      string    `avro:"title"`
	Price      float64   `avro:"price"`
	Category   string    `avro:"category"`
	OccurredAt time.Time `avro:"occurred_at"`
}

type StateSnapshotV1 struct {
	Products         []ProductV1 `avro:"products"`
	SearchTerm       string      `avro:"search_term"`
	SelectedCategory string      `avro:"selected_category"`
	SortBy           string      `avro:"sort_by"`
	SortOrder        string      `avro:"sort_order"`
}
