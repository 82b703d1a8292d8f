package storage

import (
	"errors"
)

const (
	DefaultKey          = "inventory-state"
	defaultOpenAttempts = 5
)

type Opt func(*storageOpts) error

type storageOpts struct {
	key          string
	codec        Codec
	openAttempts int
}

// KeyOpt sets the namespaced key the snapshot is kept under.
func KeyOpt(key string) Opt {
	return func(opts *storageOpts) error {
		if key == "" {
			return errors.New("key is empty string")
		}
		opts.key = key
		return nil
	}
}

func CodecOpt(c Codec) Opt {
	return func(opts *storageOpts) error {
		if c == nil {
			return errors.New("codec is nil")
		}
		opts.codec = c
		return nil
	}
}

func OpenAttemptsOpt(n int) Opt {
	return func(opts *storageOpts) error {
		if n < 1 {
			return errors.New("open attempts must be positive")
		}
		opts.openAttempts = n
		return nil
	}
}

func applyOpts(opts []Opt) (storageOpts, error) {
	options := storageOpts{
		key:          DefaultKey,
		codec:        JSONCodec{},
		openAttempts: defaultOpenAttempts,
	}
	for _, o := range opts {
		if err := o(&options); err != nil {
			return storageOpts{}, err
		}
	}
	return options, nil
}
