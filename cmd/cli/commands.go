package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/and161185/birdwatch/internal/cache"
	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/session"
	"github.com/and161185/birdwatch/internal/validate"
	"github.com/and161185/birdwatch/internal/view"
)

var errUnknownCommand = errors.New("unknown command")

// redirectError reports that a protected command was refused by the route gate.
type redirectError struct {
	To string
}

func (e *redirectError) Error() string {
	if e.To == view.LoginPath {
		return "login required (redirect to " + e.To + ")"
	}
	return "onboarding required (redirect to " + e.To + ")"
}

func (e *redirectError) Unwrap() error {
	if e.To == view.LoginPath {
		return errs.ErrNoSession
	}
	return nil
}

type command struct {
	page string // protected page the command belongs to; "" is public
	run  func(ctx context.Context, a *app, args []string) (any, error)
}

var commands = map[string]command{
	"signup":       {run: cmdSignup},
	"login":        {run: cmdLogin},
	"logout":       {run: cmdLogout},
	"whoami":       {run: cmdWhoami},
	"feed":         {run: cmdFeed},
	"post":         {run: cmdPost},
	"sight":        {page: "/create-post", run: cmdSight},
	"rm-post":      {page: "/posts", run: cmdRmPost},
	"like":         {page: "/posts", run: cmdLike(true)},
	"unlike":       {page: "/posts", run: cmdLike(false)},
	"comment":      {page: "/posts", run: cmdComment},
	"birds":        {run: cmdBirds},
	"bird":         {run: cmdBird},
	"add-bird":     {page: "/birds", run: cmdAddBird},
	"rm-bird":      {page: "/birds", run: cmdRmBird},
	"groups":       {run: cmdGroups},
	"group":        {run: cmdGroup},
	"create-group": {page: "/groups", run: cmdCreateGroup},
	"join":         {page: "/groups", run: cmdJoin},
	"leave":        {page: "/groups", run: cmdLeave},
	"requests":     {page: "/groups", run: cmdRequests},
	"approve":      {page: "/groups", run: cmdDecide(true)},
	"deny":         {page: "/groups", run: cmdDecide(false)},
	"users":        {run: cmdUsers},
	"user":         {run: cmdUser},
	"friends":      {page: "/friends", run: cmdFriends},
	"befriend":     {page: "/friends", run: cmdBefriend(true)},
	"unfriend":     {page: "/friends", run: cmdBefriend(false)},
	"set-role":     {page: "/admin", run: cmdSetRole},
	"onboard":      {page: view.OnboardingPath, run: cmdOnboard},
	"profile":      {run: cmdProfile},
	"search":       {run: cmdSearch},
}

// exec runs one subcommand after the route gate for protected ones.
func (a *app) exec(ctx context.Context, name string, args []string) (any, error) {
	cmd, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownCommand, name)
	}
	if cmd.page != "" {
		if r := view.Gate(a.deps.Session.Snapshot(), cmd.page); r.Decision != view.Allow {
			return nil, &redirectError{To: r.To}
		}
	}
	return cmd.run(ctx, a, args)
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// ---- auth ----

type whoami struct {
	State    string          `json:"state"`
	Identity *model.Identity `json:"identity,omitempty"`
	Next     string          `json:"next,omitempty"`
}

func describe(snap session.Snapshot) whoami {
	out := whoami{State: snap.State.String(), Identity: snap.Identity}
	if r := view.Gate(snap, "/"); r.Decision == view.Redirect {
		out.Next = r.To
	}
	return out
}

func credentials(name string, args []string) (model.Credentials, error) {
	fs := newFlags(name)
	u := fs.String("u", "", "username")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return model.Credentials{}, err
	}
	return model.Credentials{Username: *u, Password: *p}, validate.Required("u", *u, "p", *p)
}

func cmdSignup(ctx context.Context, a *app, args []string) (any, error) {
	cr, err := credentials("signup", args)
	if err != nil {
		return nil, err
	}
	if _, err := a.deps.Session.Signup(ctx, cr); err != nil {
		return nil, err
	}
	return describe(a.deps.Session.Snapshot()), a.persist()
}

func cmdLogin(ctx context.Context, a *app, args []string) (any, error) {
	cr, err := credentials("login", args)
	if err != nil {
		return nil, err
	}
	if _, err := a.deps.Session.Login(ctx, cr); err != nil {
		return nil, err
	}
	return describe(a.deps.Session.Snapshot()), a.persist()
}

// cmdLogout always clears the local session; the store logs a backend failure.
func cmdLogout(ctx context.Context, a *app, _ []string) (any, error) {
	_ = a.deps.Session.Logout(ctx)
	return describe(a.deps.Session.Snapshot()), a.files.Clear()
}

func cmdWhoami(_ context.Context, a *app, _ []string) (any, error) {
	return describe(a.deps.Session.Snapshot()), nil
}

// ---- sightings ----

type feedOut struct {
	CanCreatePost bool         `json:"canCreatePost"`
	Posts         []model.Post `json:"posts"`
	Friends       []model.User `json:"friends,omitempty"`
}

func cmdFeed(ctx context.Context, a *app, _ []string) (any, error) {
	f := view.NewFeed(a.deps)
	if err := f.Load(ctx); err != nil {
		return nil, err
	}
	return feedOut{CanCreatePost: f.CanCreatePost(), Posts: f.Posts(), Friends: f.Friends()}, nil
}

type postOut struct {
	Post      model.Post `json:"post"`
	ImageURL  string     `json:"imageURL,omitempty"`
	CanEdit   bool       `json:"canEdit"`
	CanDelete bool       `json:"canDelete"`
}

func describePost(v *view.Post) postOut {
	return postOut{Post: v.Post(), ImageURL: v.ImageURL(), CanEdit: v.CanEdit(), CanDelete: v.CanDelete()}
}

func idFlag(name string, args []string) (string, error) {
	fs := newFlags(name)
	id := fs.String("id", "", "id")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *id, validate.Required("id", *id)
}

func cmdPost(ctx context.Context, a *app, args []string) (any, error) {
	id, err := idFlag("post", args)
	if err != nil {
		return nil, err
	}
	v, err := view.OpenPost(ctx, a.deps, id)
	if err != nil {
		return nil, err
	}
	return describePost(v), nil
}

func cmdSight(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("sight")
	header := fs.String("header", "", "title")
	text := fs.String("text", "", "body")
	bird := fs.String("bird", "", "bird id")
	group := fs.String("group", "", "group id")
	help := fs.Bool("help", false, "ask for identification help")
	lat := fs.String("lat", "", "latitude")
	lon := fs.String("lon", "", "longitude")
	image := fs.String("image", "", "image file ('-'=stdin)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	in := model.PostInput{Header: *header, TextBody: *text, Help: *help}
	if *bird != "" {
		in.Bird = bird
	}
	if *group != "" {
		in.Group = group
	}
	if *lat != "" || *lon != "" {
		la, err1 := strconv.ParseFloat(*lat, 64)
		lo, err2 := strconv.ParseFloat(*lon, 64)
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("%w: -lat and -lon must both be numbers", errs.ErrValidation)
		}
		loc := model.Coordinates{Latitude: la, Longitude: lo}.Location()
		in.Tags = &model.Tags{Latitude: loc.Latitude, Longitude: loc.Longitude}
	}

	up, done, err := openUpload(*image)
	if err != nil {
		return nil, err
	}
	defer done()
	return view.NewFeed(a.deps).Create(ctx, in, up)
}

func cmdRmPost(ctx context.Context, a *app, args []string) (any, error) {
	id, err := idFlag("rm-post", args)
	if err != nil {
		return nil, err
	}
	v, err := view.OpenPost(ctx, a.deps, id)
	if err != nil {
		return nil, err
	}
	return map[string]string{"deleted": id}, v.Delete(ctx)
}

func cmdLike(like bool) func(context.Context, *app, []string) (any, error) {
	return func(ctx context.Context, a *app, args []string) (any, error) {
		id, err := idFlag("like", args)
		if err != nil {
			return nil, err
		}
		me, _ := a.deps.Session.Identity()
		var p *model.Post
		err = a.deps.Guard.Do(ctx, "sightings.like", id, func(ctx context.Context) error {
			if like {
				p, err = a.client.Sightings.Like(ctx, id, me.ID)
			} else {
				p, err = a.client.Sightings.Unlike(ctx, id, me.ID)
			}
			return err
		})
		return p, err
	}
}

func cmdComment(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("comment")
	id := fs.String("id", "", "post id")
	text := fs.String("text", "", "comment")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := validate.Required("id", *id); err != nil {
		return nil, err
	}
	v, err := view.OpenPost(ctx, a.deps, *id)
	if err != nil {
		return nil, err
	}
	if err := v.Comment(ctx, *text); err != nil {
		return nil, err
	}
	return describePost(v), nil
}

// ---- birds ----

type birdOut struct {
	model.Bird
	Image string `json:"image"`
}

type catalogOut struct {
	CanEdit bool      `json:"canEdit"`
	Birds   []birdOut `json:"birds"`
}

func cmdBirds(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("birds")
	q := fs.String("q", "", "search query")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	c := view.NewCatalog(a.deps)
	if err := c.Load(ctx, *q); err != nil {
		return nil, err
	}
	out := catalogOut{CanEdit: c.CanEditBird(), Birds: []birdOut{}}
	for _, b := range c.Birds() {
		out.Birds = append(out.Birds, birdOut{Bird: b, Image: c.ImageURL(b)})
	}
	return out, nil
}

func cmdBird(ctx context.Context, a *app, args []string) (any, error) {
	id, err := idFlag("bird", args)
	if err != nil {
		return nil, err
	}
	c := view.NewCatalog(a.deps)
	b, err := c.Bird(ctx, id)
	if err != nil {
		return nil, err
	}
	return birdOut{Bird: *b, Image: c.ImageURL(*b)}, nil
}

func cmdAddBird(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("add-bird")
	name := fs.String("name", "", "common name")
	sci := fs.String("sci", "", "scientific name")
	imageURL := fs.String("image-url", "", "external image URL")
	image := fs.String("image", "", "image file ('-'=stdin)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	c := view.NewCatalog(a.deps)
	if !c.CanEditBird() {
		return nil, fmt.Errorf("%w: only admins can edit the catalog", errs.ErrUnauthorized)
	}
	up, done, err := openUpload(*image)
	if err != nil {
		return nil, err
	}
	defer done()
	return c.Add(ctx, model.BirdInput{CommonName: *name, ScientificName: *sci, ImageURL: *imageURL}, up)
}

func cmdRmBird(ctx context.Context, a *app, args []string) (any, error) {
	id, err := idFlag("rm-bird", args)
	if err != nil {
		return nil, err
	}
	return map[string]string{"deleted": id}, view.NewCatalog(a.deps).Remove(ctx, id)
}

// ---- groups ----

type groupsOut struct {
	All  []model.Group `json:"all"`
	Mine []model.Group `json:"mine,omitempty"`
}

func cmdGroups(ctx context.Context, a *app, _ []string) (any, error) {
	g := view.NewGroups(a.deps)
	if err := g.Load(ctx); err != nil {
		return nil, err
	}
	return groupsOut{All: g.All(), Mine: g.Mine()}, nil
}

type groupOut struct {
	Group     model.Group      `json:"group"`
	Photo     string           `json:"photo,omitempty"`
	CanJoin   bool             `json:"canJoin"`
	CanManage bool             `json:"canManage"`
	Requests  []model.PostUser `json:"requests,omitempty"`
}

func cmdGroup(ctx context.Context, a *app, args []string) (any, error) {
	id, err := idFlag("group", args)
	if err != nil {
		return nil, err
	}
	grp, err := cache.Fetch(ctx, a.deps.Cache, cache.Key{Kind: cache.KindGroup, ID: id}, func(ctx context.Context) (*model.Group, error) {
		return a.client.Groups.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	page := view.NewGroups(a.deps)
	out := groupOut{
		Group:     *grp,
		Photo:     a.deps.Media.Resolve(grp.GroupPhoto),
		CanJoin:   page.CanJoin(*grp),
		CanManage: page.CanManage(*grp),
	}
	if out.CanManage {
		out.Requests = grp.Requests
	}
	return out, nil
}

func cmdCreateGroup(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("create-group")
	name := fs.String("name", "", "group name")
	desc := fs.String("desc", "", "description")
	image := fs.String("image", "", "photo file ('-'=stdin)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	up, done, err := openUpload(*image)
	if err != nil {
		return nil, err
	}
	defer done()
	return view.NewGroups(a.deps).Create(ctx, model.GroupInput{Name: *name, Description: *desc}, up)
}

func cmdJoin(ctx context.Context, a *app, args []string) (any, error) {
	id, err := idFlag("join", args)
	if err != nil {
		return nil, err
	}
	a.deps.Cache.Invalidate(ctx, cache.Key{Kind: cache.KindGroup, ID: id})
	return map[string]string{"requested": id}, view.NewGroups(a.deps).RequestJoin(ctx, id)
}

func cmdLeave(ctx context.Context, a *app, args []string) (any, error) {
	id, err := idFlag("leave", args)
	if err != nil {
		return nil, err
	}
	a.deps.Cache.Invalidate(ctx, cache.Key{Kind: cache.KindGroup, ID: id})
	return map[string]string{"left": id}, view.NewGroups(a.deps).Leave(ctx, id)
}

func cmdRequests(ctx context.Context, a *app, args []string) (any, error) {
	id, err := idFlag("requests", args)
	if err != nil {
		return nil, err
	}
	return a.client.Groups.JoinRequests(ctx, id)
}

func cmdDecide(approve bool) func(context.Context, *app, []string) (any, error) {
	return func(ctx context.Context, a *app, args []string) (any, error) {
		fs := newFlags("decide")
		id := fs.String("id", "", "group id")
		user := fs.String("user", "", "user id")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if err := validate.Required("id", *id, "user", *user); err != nil {
			return nil, err
		}
		a.deps.Cache.Invalidate(ctx, cache.Key{Kind: cache.KindGroup, ID: *id})
		g := view.NewGroups(a.deps)
		if approve {
			return map[string]string{"approved": *user}, g.Approve(ctx, *id, *user)
		}
		return map[string]string{"denied": *user}, g.Deny(ctx, *id, *user)
	}
}

// ---- users ----

func cmdUsers(ctx context.Context, a *app, _ []string) (any, error) {
	return a.client.Users.List(ctx)
}

func cmdUser(ctx context.Context, a *app, args []string) (any, error) {
	id, err := idFlag("user", args)
	if err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, a.deps.Cache, cache.Key{Kind: cache.KindUser, ID: id}, func(ctx context.Context) (*model.User, error) {
		return a.client.Users.Get(ctx, id)
	})
}

func cmdFriends(ctx context.Context, a *app, _ []string) (any, error) {
	me, _ := a.deps.Session.Identity()
	return a.client.Users.Friends(ctx, me.ID)
}

func cmdBefriend(add bool) func(context.Context, *app, []string) (any, error) {
	return func(ctx context.Context, a *app, args []string) (any, error) {
		id, err := idFlag("befriend", args)
		if err != nil {
			return nil, err
		}
		if add {
			return map[string]string{"befriended": id}, view.Befriend(ctx, a.deps, id)
		}
		return map[string]string{"unfriended": id}, view.Unfriend(ctx, a.deps, id)
	}
}

func cmdSetRole(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("set-role")
	id := fs.String("id", "", "user id")
	newRole := fs.String("role", "", "new role")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if !view.CanSetRole(a.deps.Session.Snapshot()) {
		return nil, fmt.Errorf("%w: only super users can change roles", errs.ErrUnauthorized)
	}
	if err := validate.Required("id", *id); err != nil {
		return nil, err
	}
	return view.SetRole(ctx, a.deps, *id, *newRole)
}

func cmdOnboard(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("onboard")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	loc := fs.String("location", "", "location, e.g. \"Boise, ID\"")
	photo := fs.String("photo", "", "profile photo file ('-'=stdin)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	up, done, err := openUpload(*photo)
	if err != nil {
		return nil, err
	}
	defer done()
	if _, err := view.Onboard(ctx, a.deps, model.OnboardingInput{FirstName: *first, LastName: *last, Location: *loc}, up); err != nil {
		return nil, err
	}
	return describe(a.deps.Session.Snapshot()), a.persist()
}

func cmdProfile(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("profile")
	id := fs.String("id", "", "user id (default: you)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *id == "" {
		if r := view.Gate(a.deps.Session.Snapshot(), "/profile"); r.Decision != view.Allow {
			return nil, &redirectError{To: r.To}
		}
		*id = a.deps.Session.Snapshot().UserID()
	}
	return view.LoadProfile(ctx, a.deps, *id)
}

// ---- search ----

func cmdSearch(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("search")
	q := fs.String("q", "", "query")
	kind := fs.String("kind", "all", "all|birds|users|friends|groups|my-groups|posts")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := validate.Required("q", *q); err != nil {
		return nil, err
	}
	s := a.client.Search
	switch *kind {
	case "all":
		return s.All(ctx, *q)
	case "birds":
		return s.Birds(ctx, *q)
	case "users":
		return s.Users(ctx, *q)
	case "friends":
		return s.Friends(ctx, *q)
	case "groups":
		return s.Groups(ctx, *q)
	case "my-groups":
		return s.MyGroups(ctx, *q)
	case "posts":
		return s.Posts(ctx, *q)
	default:
		return nil, fmt.Errorf("%w: unknown search kind %q", errs.ErrValidation, *kind)
	}
}
