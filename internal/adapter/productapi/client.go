package productapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/internal/core/port"
)

var _ port.ProductsAPI = (*Client)(nil)

const DefaultBaseURL = "https://fakestoreapi.com"

// A NetworkError is returned for transport failures and non-2xx responses.
type NetworkError struct {
	Op         string
	StatusCode int // zero for transport failures
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s: status %d", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UserMessage returns the human readable part of e.
func (e *NetworkError) UserMessage() string {
	return e.Message
}

type Opt func(*clientOpts) error

type clientOpts struct {
	baseURL    string
	httpClient *http.Client
}

func BaseURLOpt(u string) Opt {
	return func(opts *clientOpts) error {
		if u == "" {
			return errors.New("base url is empty string")
		}
		opts.baseURL = u
		return nil
	}
}

// HTTPClientOpt replaces the underlying transport client.
func HTTPClientOpt(c *http.Client) Opt {
	return func(opts *clientOpts) error {
		if c == nil {
			return errors.New("http client is nil")
		}
		opts.httpClient = c
		return nil
	}
}

// A Client talks to the remote products REST API. Every call is a single
// attempt without retries.
type Client struct {
	rc *resty.Client
}

func New(opts ...Opt) (Client, error) {
	const op = "productapi.New"

	options := clientOpts{baseURL: DefaultBaseURL}
	for _, o := range opts {
		if err := o(&options); err != nil {
			return Client{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	var rc *resty.Client
	if options.httpClient != nil {
		rc = resty.NewWithClient(options.httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(options.baseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)

	return Client{rc}, nil
}

func (c Client) List(ctx context.Context) ([]domain.Product, error) {
	const op = "Client.List"

	var ps []domain.Product
	res, err := c.rc.R().
		SetContext(ctx).
		SetResult(&ps).
		Get("/products")
	if err := checkResponse(op, "Failed to fetch products", res, err); err != nil {
		return nil, err
	}

	slog.Debug("products fetched", "op", op, "nProducts", len(ps))
	if ps == nil {
		ps = []domain.Product{}
	}
	return ps, nil
}

// Create posts the draft and returns it with the identifier assigned by the
// server, which is zero when the server did not return one.
func (c Client) Create(
	ctx context.Context, d domain.ProductDraft,
) (domain.Product, error) {
	const op = "Client.Create"

	var created struct {
		ID int64 `json:"id"`
	}
	res, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(d).
		SetResult(&created).
		Post("/products")
	if err := checkResponse(op, "Failed to add product", res, err); err != nil {
		return domain.Product{}, err
	}

	return d.WithID(created.ID), nil
}

// Update puts p and returns it unchanged as confirmation.
func (c Client) Update(
	ctx context.Context, p domain.Product,
) (domain.Product, error) {
	const op = "Client.Update"

	res, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetPathParam("id", strconv.FormatInt(p.ID, 10)).
		SetBody(p).
		Put("/products/{id}")
	if err := checkResponse(op, "Failed to update product", res, err); err != nil {
		return domain.Product{}, err
	}

	return p, nil
}

func (c Client) Remove(ctx context.Context, id int64) (int64, error) {
	const op = "Client.Remove"

	res, err := c.rc.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Delete("/products/{id}")
	if err := checkResponse(op, "Failed to delete product", res, err); err != nil {
		return 0, err
	}

	return id, nil
}

func checkResponse(op, msg string, res *resty.Response, err error) error {
	if err != nil {
		return &NetworkError{Op: op, Message: msg, Err: err}
	}
	if !res.IsSuccess() {
		return &NetworkError{Op: op, Message: msg, StatusCode: res.StatusCode()}
	}
	return nil
}
