package api

import (
	"context"
	"net/http"

	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/validate"
)

// Groups talks to /groups.
type Groups struct{ c *Client }

// List returns every group; unlike user collections a 404 here is an error.
func (g *Groups) List(ctx context.Context) ([]model.Group, error) {
	return strict[model.Group](ctx, g.c, request{
		op: "groups.list", action: "fetch groups",
		method: http.MethodGet, path: "/groups", notFound: "Groups not found",
	})
}

// Get returns one group; a 404 is errs.ErrNotFound.
func (g *Groups) Get(ctx context.Context, id string) (*model.Group, error) {
	if err := validate.Required("id", id); err != nil {
		return nil, err
	}
	return one[model.Group](ctx, g.c, request{
		op: "groups.get", action: "fetch group",
		method: http.MethodGet, path: p("groups", id), notFound: "Group not found",
	})
}

// Create makes ownerID the owner of a new group.
func (g *Groups) Create(ctx context.Context, ownerID string, in model.GroupInput, photo *model.Upload) (*model.Group, error) {
	if err := validate.Required("owner id", ownerID); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
	if in.Members == nil {
		in.Members = []model.PostUser{}
	}
	if in.Requests == nil {
		in.Requests = []model.PostUser{}
	}
	return one[model.Group](ctx, g.c, request{
		op: "groups.create", action: "create group",
		method: http.MethodPost, path: "/groups",
		form: newForm().jsonField("group", in).field("userId", ownerID).attach("image", photo),
	})
}

// Rename changes the group name on behalf of userID.
func (g *Groups) Rename(ctx context.Context, id, userID, name string) (*model.Group, error) {
	in := model.GroupRename{Name: name}
	if err := validate.Required("id", id, "user id", userID); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return one[model.Group](ctx, g.c, request{
		op: "groups.update", action: "update group",
		method: http.MethodPut, path: p("groups", id), query: q("userId", userID), body: in,
	})
}

// Delete removes a group on behalf of userID.
func (g *Groups) Delete(ctx context.Context, id, userID string) error {
	if err := validate.Required("id", id, "user id", userID); err != nil {
		return err
	}
	return g.c.do(ctx, request{
		op: "groups.delete", action: "delete group",
		method: http.MethodDelete, path: p("groups", id), query: q("userId", userID),
	}, nil)
}

// RequestJoin files a join request for userID.
func (g *Groups) RequestJoin(ctx context.Context, id, userID string) error {
	if err := validate.Required("id", id, "user id", userID); err != nil {
		return err
	}
	return g.c.do(ctx, request{
		op: "groups.request_join", action: "request to join group",
		method: http.MethodPost, path: p("groups", id, "join-requests"), query: q("userId", userID),
	}, nil)
}

// JoinRequests lists pending requests of a group.
func (g *Groups) JoinRequests(ctx context.Context, id string) ([]model.PostUser, error) {
	return strict[model.PostUser](ctx, g.c, request{
		op: "groups.join_requests", action: "fetch join requests",
		method: http.MethodGet, path: p("groups", id, "join-requests"),
	})
}

// Approve admits userID, whose join request is pending.
func (g *Groups) Approve(ctx context.Context, id, userID string) error {
	return g.decide(ctx, id, userID, "approve")
}

// Deny rejects the pending join request of userID.
func (g *Groups) Deny(ctx context.Context, id, userID string) error {
	return g.decide(ctx, id, userID, "deny")
}

func (g *Groups) decide(ctx context.Context, id, userID, verdict string) error {
	if err := validate.Required("id", id, "user id", userID); err != nil {
		return err
	}
	return g.c.do(ctx, request{
		op: "groups." + verdict, action: verdict + " join request",
		method: http.MethodPut, path: p("groups", id, "join-requests", userID, verdict),
	}, nil)
}

// Leave removes userID from the group at their own request.
func (g *Groups) Leave(ctx context.Context, id, userID string) error {
	if err := validate.Required("id", id, "user id", userID); err != nil {
		return err
	}
	return g.c.do(ctx, request{
		op: "groups.leave", action: "leave group",
		method: http.MethodDelete, path: p("groups", id, "members", userID),
	}, nil)
}

// RemoveMember expels userID; intended for the owner or an admin.
func (g *Groups) RemoveMember(ctx context.Context, id, userID string) error {
	if err := validate.Required("id", id, "user id", userID); err != nil {
		return err
	}
	return g.c.do(ctx, request{
		op: "groups.remove_member", action: "remove member",
		method: http.MethodDelete, path: p("groups", id, "members", userID, "remove"),
	}, nil)
}
