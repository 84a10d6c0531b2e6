package api

import (
	"context"
	"net/http"

	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/validate"
)

// Birds talks to the species catalog at /birds.
type Birds struct{ c *Client }

// List returns the whole catalog. A 404 is an error.
func (b *Birds) List(ctx context.Context) ([]model.Bird, error) {
	return strict[model.Bird](ctx, b.c, request{
		op: "birds.list", action: "fetch birds",
		method: http.MethodGet, path: "/birds",
	})
}

// Get returns one bird; a 404 is errs.ErrNotFound.
func (b *Birds) Get(ctx context.Context, id string) (*model.Bird, error) {
	if err := validate.Required("id", id); err != nil {
		return nil, err
	}
	return one[model.Bird](ctx, b.c, request{
		op: "birds.get", action: "fetch bird",
		method: http.MethodGet, path: p("birds", id), notFound: "Bird not found",
	})
}

// Search returns birds whose names match query.
func (b *Birds) Search(ctx context.Context, query string) ([]model.Bird, error) {
	return strict[model.Bird](ctx, b.c, request{
		op: "birds.search", action: "search birds",
		method: http.MethodGet, path: "/birds/search", query: q("query", query),
	})
}

// Create adds a catalog entry with an optional image.
func (b *Birds) Create(ctx context.Context, in model.BirdInput, image *model.Upload) (*model.Bird, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return one[model.Bird](ctx, b.c, request{
		op: "birds.create", action: "add bird",
		method: http.MethodPost, path: "/birds",
		form: newForm().jsonField("bird", in).attach("image", image),
	})
}

// Update patches a catalog entry; a nil image keeps the current one.
func (b *Birds) Update(ctx context.Context, id string, in model.BirdInput, image *model.Upload) (*model.Bird, error) {
	if err := validate.Required("id", id); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return one[model.Bird](ctx, b.c, request{
		op: "birds.update", action: "update bird",
		method: http.MethodPatch, path: p("birds", id),
		form: newForm().jsonField("bird", in).attach("image", image),
	})
}

// Delete removes a bird from the catalog.
func (b *Birds) Delete(ctx context.Context, id string) error {
	if err := validate.Required("id", id); err != nil {
		return err
	}
	return b.c.do(ctx, request{
		op: "birds.delete", action: "delete bird",
		method: http.MethodDelete, path: p("birds", id),
	}, nil)
}
