package apitest

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/role"
	"github.com/go-chi/chi/v5"
)

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()

	b.handle(r, http.MethodPost, "/auth/signup", b.signup)
	b.handle(r, http.MethodPost, "/auth/login", b.login)
	b.handle(r, http.MethodGet, "/auth/me", b.me)
	b.handle(r, http.MethodPost, "/auth/logout", b.logout)

	b.handle(r, http.MethodGet, "/birds", b.listBirds)
	b.handle(r, http.MethodGet, "/birds/search", b.searchBirds)
	b.handle(r, http.MethodGet, "/birds/{id}", b.getBird)
	b.handle(r, http.MethodPost, "/birds", b.authed(b.createBird))
	b.handle(r, http.MethodPatch, "/birds/{id}", b.authed(b.updateBird))
	b.handle(r, http.MethodDelete, "/birds/{id}", b.authed(b.deleteBird))

	b.handle(r, http.MethodGet, "/users", b.listUsers)
	b.handle(r, http.MethodPost, "/users/onboard", b.authed(b.onboard))
	b.handle(r, http.MethodGet, "/users/{id}", b.getUser)
	b.handle(r, http.MethodPatch, "/users/{id}", b.authed(b.updateProfile))
	b.handle(r, http.MethodGet, "/users/{id}/friends", b.userFriends)
	b.handle(r, http.MethodGet, "/users/{id}/groups", b.userGroups)
	b.handle(r, http.MethodGet, "/users/{id}/posts", b.userPosts)
	b.handle(r, http.MethodGet, "/users/{id}/top-birds", b.topBirds)
	b.handle(r, http.MethodPut, "/users/{id}/friends/{friendId}", b.authed(b.addFriend))
	b.handle(r, http.MethodDelete, "/users/{id}/friends/{friendId}", b.authed(b.removeFriend))
	b.handle(r, http.MethodPatch, "/users/{id}/role", b.authed(b.updateRole))

	b.handle(r, http.MethodGet, "/groups", b.listGroups)
	b.handle(r, http.MethodPost, "/groups", b.authed(b.createGroup))
	b.handle(r, http.MethodGet, "/groups/{id}", b.getGroup)
	b.handle(r, http.MethodPut, "/groups/{id}", b.authed(b.renameGroup))
	b.handle(r, http.MethodDelete, "/groups/{id}", b.authed(b.deleteGroup))
	b.handle(r, http.MethodPost, "/groups/{id}/join-requests", b.authed(b.requestJoin))
	b.handle(r, http.MethodGet, "/groups/{id}/join-requests", b.joinRequests)
	b.handle(r, http.MethodPut, "/groups/{id}/join-requests/{userId}/approve", b.authed(b.decide(true)))
	b.handle(r, http.MethodPut, "/groups/{id}/join-requests/{userId}/deny", b.authed(b.decide(false)))
	b.handle(r, http.MethodDelete, "/groups/{id}/members/{userId}", b.authed(b.leaveGroup))
	b.handle(r, http.MethodDelete, "/groups/{id}/members/{userId}/remove", b.authed(b.leaveGroup))

	b.handle(r, http.MethodGet, "/sightings", b.listPosts)
	b.handle(r, http.MethodPost, "/sightings", b.authed(b.newPost))
	b.handle(r, http.MethodGet, "/sightings/group/{groupId}", b.groupPosts)
	b.handle(r, http.MethodGet, "/sightings/{id}", b.getPost)
	b.handle(r, http.MethodPut, "/sightings/{id}", b.authed(b.updatePost))
	b.handle(r, http.MethodDelete, "/sightings/{id}", b.authed(b.deletePost))
	b.handle(r, http.MethodPut, "/sightings/{id}/like/{userId}", b.authed(b.like(true)))
	b.handle(r, http.MethodPut, "/sightings/{id}/unlike/{userId}", b.authed(b.like(false)))
	b.handle(r, http.MethodPost, "/sightings/{id}/comments", b.authed(b.addComment))
	b.handle(r, http.MethodPatch, "/sightings/{id}/comments", b.authed(b.updateComment))
	b.handle(r, http.MethodDelete, "/sightings/{id}/comments", b.authed(b.deleteComment))

	b.handle(r, http.MethodGet, "/search", b.searchAll)
	b.handle(r, http.MethodGet, "/search/{kind}", b.searchKind)
	return r
}

type authedHandler func(w http.ResponseWriter, r *http.Request, me *account)

func (b *Backend) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := b.session(r)
		if me == nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		h(w, r, me)
	}
}

// ---- auth ----

func (b *Backend) signup(w http.ResponseWriter, r *http.Request) {
	var cr model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&cr); err != nil || cr.Username == "" || cr.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	b.mu.Lock()
	for _, a := range b.accounts {
		if a.user.Username == cr.Username {
			b.mu.Unlock()
			writeError(w, http.StatusConflict, "Username already taken")
			return
		}
	}
	pending := false
	a := &account{
		user: model.User{
			ID: b.next("u"), Username: cr.Username, Role: string(role.BasicUser),
			Posts: []string{}, Groups: []string{},
		},
		password:  hashPassword(cr.Password),
		onboarded: &pending,
	}
	b.accounts[a.user.ID] = a
	id := identity(a)
	b.mu.Unlock()

	b.setSession(w, a.user)
	writeJSON(w, http.StatusCreated, id)
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var cr model.Credentials
	_ = json.NewDecoder(r.Body).Decode(&cr)
	b.mu.Lock()
	var found *account
	for _, a := range b.accounts {
		if a.user.Username == cr.Username && a.password.matches(cr.Password) {
			found = a
		}
	}
	var id model.Identity
	if found != nil {
		id = identity(found)
	}
	b.mu.Unlock()
	if found == nil {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	b.setSession(w, found.user)
	writeJSON(w, http.StatusOK, id)
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	a := b.session(r)
	if a == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	b.mu.Lock()
	id := identity(a)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, id)
}

func (b *Backend) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// ---- birds ----

func (b *Backend) listBirds(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, sortedValues(b.birds, func(x model.Bird) string { return x.ID }))
}

func (b *Backend) searchBirds(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.matchBirds(query))
}

func (b *Backend) matchBirds(query string) []model.Bird {
	out := []model.Bird{}
	for _, x := range sortedValues(b.birds, func(x model.Bird) string { return x.ID }) {
		if contains(x.CommonName, query) || contains(x.ScientificName, query) {
			out = append(out, x)
		}
	}
	return out
}

func (b *Backend) getBird(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	x, ok := b.birds[chi.URLParam(r, "id")]
	b.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Bird not found")
		return
	}
	writeJSON(w, http.StatusOK, x)
}

func (b *Backend) createBird(w http.ResponseWriter, r *http.Request, _ *account) {
	var in model.BirdInput
	image, ok := readForm(w, r, "bird", &in, "image")
	if !ok {
		return
	}
	b.mu.Lock()
	x := model.Bird{ID: b.next("b"), CommonName: in.CommonName, ScientificName: in.ScientificName, ImageURL: in.ImageURL}
	if image != "" {
		x.ImageURL = "/bird_images/" + image
	}
	b.birds[x.ID] = x
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, x)
}

func (b *Backend) updateBird(w http.ResponseWriter, r *http.Request, _ *account) {
	var in model.BirdInput
	image, ok := readForm(w, r, "bird", &in, "image")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	x, found := b.birds[chi.URLParam(r, "id")]
	if !found {
		writeError(w, http.StatusNotFound, "Bird not found")
		return
	}
	x.CommonName, x.ScientificName = in.CommonName, in.ScientificName
	if in.ImageURL != "" {
		x.ImageURL = in.ImageURL
	}
	if image != "" {
		x.ImageURL = "/bird_images/" + image
	}
	b.birds[x.ID] = x
	writeJSON(w, http.StatusOK, x)
}

func (b *Backend) deleteBird(w http.ResponseWriter, r *http.Request, me *account) {
	if !role.IsAdmin(me.user.Role) {
		writeError(w, http.StatusForbidden, "Only admins can delete birds")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, ok := b.birds[id]; !ok {
		writeError(w, http.StatusNotFound, "Bird not found")
		return
	}
	delete(b.birds, id)
	w.WriteHeader(http.StatusNoContent)
}

// ---- users ----

func (b *Backend) listUsers(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.users(func(model.User) bool { return true }))
}

func (b *Backend) users(keep func(model.User) bool) []model.User {
	out := []model.User{}
	for _, a := range sortedValues(b.accounts, func(a *account) string { return a.user.ID }) {
		if keep(a.user) {
			out = append(out, a.user)
		}
	}
	return out
}

// user looks up the {id} account; the caller holds mu.
func (b *Backend) user(w http.ResponseWriter, r *http.Request) *account {
	a := b.accounts[chi.URLParam(r, "id")]
	if a == nil {
		writeError(w, http.StatusNotFound, "User not found")
	}
	return a
}

func (b *Backend) getUser(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a := b.user(w, r); a != nil {
		writeJSON(w, http.StatusOK, a.user)
	}
}

func (b *Backend) userFriends(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a := b.user(w, r); a != nil {
		writeJSON(w, http.StatusOK, b.users(func(u model.User) bool { return a.user.HasFriend(u.ID) }))
	}
}

func (b *Backend) userGroups(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a := b.user(w, r); a != nil {
		out := []model.Group{}
		for _, g := range sortedValues(b.groups, func(g model.Group) string { return g.ID }) {
			if g.IsMember(a.user.ID) {
				out = append(out, g)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (b *Backend) userPosts(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a := b.user(w, r); a != nil {
		writeJSON(w, http.StatusOK, b.postsWhere(func(p model.Post) bool { return p.User.UserID == a.user.ID }))
	}
}

func (b *Backend) topBirds(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.user(w, r)
	if a == nil {
		return
	}
	counts := map[string]int{}
	for _, p := range b.posts {
		if p.User.UserID == a.user.ID && p.BirdID() != "" {
			counts[p.BirdID()]++
		}
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	out := []model.Bird{}
	for _, id := range ids {
		if x, ok := b.birds[id]; ok && len(out) < 3 {
			x.ID = "" // the real service omits ids here
			out = append(out, x)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) addFriend(w http.ResponseWriter, r *http.Request, me *account) {
	b.friendship(w, r, me, true)
}

func (b *Backend) removeFriend(w http.ResponseWriter, r *http.Request, me *account) {
	b.friendship(w, r, me, false)
}

func (b *Backend) friendship(w http.ResponseWriter, r *http.Request, me *account, add bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, friendID := chi.URLParam(r, "id"), chi.URLParam(r, "friendId")
	if id != me.user.ID {
		writeError(w, http.StatusForbidden, "Cannot change another user's friends")
		return
	}
	if b.accounts[friendID] == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if add {
		b.link(id, friendID)
	} else {
		b.accounts[id].user.Friends = without(b.accounts[id].user.Friends, func(s string) bool { return s == friendID })
		b.accounts[friendID].user.Friends = without(b.accounts[friendID].user.Friends, func(s string) bool { return s == id })
	}
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) updateRole(w http.ResponseWriter, r *http.Request, me *account) {
	if !role.IsSuperUser(me.user.Role) {
		writeError(w, http.StatusForbidden, "Only super users can change roles")
		return
	}
	var in model.RoleChange
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if a := b.user(w, r); a != nil {
		a.user.Role = in.Role
		writeJSON(w, http.StatusOK, a.user)
	}
}

func (b *Backend) updateProfile(w http.ResponseWriter, r *http.Request, me *account) {
	var in model.ProfileInput
	image, ok := readForm(w, r, "user", &in, "image")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.user(w, r)
	if a == nil {
		return
	}
	if a != me {
		writeError(w, http.StatusForbidden, "Cannot edit another user")
		return
	}
	if in.Username != "" {
		a.user.Username = in.Username
	}
	if in.FirstName != "" {
		a.user.FirstName = in.FirstName
	}
	if in.LastName != "" {
		a.user.LastName = in.LastName
	}
	if image != "" {
		a.user.ProfilePic = "/profile_pictures/" + image
	}
	writeJSON(w, http.StatusOK, a.user)
}

func (b *Backend) onboard(w http.ResponseWriter, r *http.Request, me *account) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	image := fileName(r, "profilePhoto")
	b.mu.Lock()
	defer b.mu.Unlock()
	me.user.FirstName = r.FormValue("firstName")
	me.user.LastName = r.FormValue("lastName")
	me.user.Location = model.Location{Label: r.FormValue("location")}
	if image != "" {
		me.user.ProfilePic = "/profile_pictures/" + image
	}
	done := true
	me.onboarded = &done
	writeJSON(w, http.StatusOK, identity(me))
}

// ---- groups ----

func (b *Backend) listGroups(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.groups) == 0 {
		writeError(w, http.StatusNotFound, "Groups not found")
		return
	}
	writeJSON(w, http.StatusOK, sortedValues(b.groups, func(g model.Group) string { return g.ID }))
}

// group looks up the {id} group; the caller holds mu.
func (b *Backend) group(w http.ResponseWriter, r *http.Request) (model.Group, bool) {
	g, ok := b.groups[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Group not found")
	}
	return g, ok
}

func (b *Backend) getGroup(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g, ok := b.group(w, r); ok {
		writeJSON(w, http.StatusOK, g)
	}
}

func (b *Backend) createGroup(w http.ResponseWriter, r *http.Request, me *account) {
	var in model.GroupInput
	image, ok := readForm(w, r, "group", &in, "image")
	if !ok {
		return
	}
	if r.FormValue("userId") != me.user.ID {
		writeError(w, http.StatusForbidden, "Owner must be the session user")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	g := model.Group{
		ID: b.next("g"), Name: in.Name, Description: in.Description,
		Owner:    summary(me.user),
		Members:  []model.PostUser{},
		Requests: []model.PostUser{},
	}
	if image != "" {
		g.GroupPhoto = "/group_photos/" + image
	}
	b.groups[g.ID] = g
	me.user.Groups = append(me.user.Groups, g.ID)
	writeJSON(w, http.StatusCreated, g)
}

func (b *Backend) canManage(me *account, g model.Group) bool {
	return role.CanPerformAction(me.user.ID, me.user.Role, g.Owner.UserID)
}

func (b *Backend) renameGroup(w http.ResponseWriter, r *http.Request, me *account) {
	var in model.GroupRename
	_ = json.NewDecoder(r.Body).Decode(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.group(w, r)
	if !ok {
		return
	}
	if !b.canManage(me, g) {
		writeError(w, http.StatusForbidden, "Only the owner can edit this group")
		return
	}
	g.Name = in.Name
	b.groups[g.ID] = g
	writeJSON(w, http.StatusOK, g)
}

func (b *Backend) deleteGroup(w http.ResponseWriter, r *http.Request, me *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.group(w, r)
	if !ok {
		return
	}
	if !b.canManage(me, g) {
		writeError(w, http.StatusForbidden, "Only the owner can delete this group")
		return
	}
	delete(b.groups, g.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) requestJoin(w http.ResponseWriter, r *http.Request, me *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.group(w, r)
	if !ok {
		return
	}
	if g.IsMember(me.user.ID) {
		writeError(w, http.StatusConflict, "Already a member")
		return
	}
	if g.HasRequested(me.user.ID) {
		writeError(w, http.StatusConflict, "Join request already pending")
		return
	}
	g.Requests = append(g.Requests, summary(me.user))
	b.groups[g.ID] = g
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) joinRequests(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g, ok := b.group(w, r); ok {
		writeJSON(w, http.StatusOK, g.Requests)
	}
}

func (b *Backend) decide(approve bool) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, me *account) {
		b.mu.Lock()
		defer b.mu.Unlock()
		g, ok := b.group(w, r)
		if !ok {
			return
		}
		if !b.canManage(me, g) {
			writeError(w, http.StatusForbidden, "Only the owner can review requests")
			return
		}
		uid := chi.URLParam(r, "userId")
		if !g.HasRequested(uid) {
			writeError(w, http.StatusNotFound, "Join request not found")
			return
		}
		g.Requests = without(g.Requests, func(u model.PostUser) bool { return u.UserID == uid })
		if approve {
			if a := b.accounts[uid]; a != nil {
				g.Members = append(g.Members, summary(a.user))
				a.user.Groups = append(a.user.Groups, g.ID)
			}
		}
		b.groups[g.ID] = g
		w.WriteHeader(http.StatusOK)
	}
}

func (b *Backend) leaveGroup(w http.ResponseWriter, r *http.Request, me *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.group(w, r)
	if !ok {
		return
	}
	uid := chi.URLParam(r, "userId")
	if uid != me.user.ID && !b.canManage(me, g) {
		writeError(w, http.StatusForbidden, "Cannot remove another member")
		return
	}
	g.Members = without(g.Members, func(u model.PostUser) bool { return u.UserID == uid })
	b.groups[g.ID] = g
	if a := b.accounts[uid]; a != nil {
		a.user.Groups = without(a.user.Groups, func(s string) bool { return s == g.ID })
	}
	w.WriteHeader(http.StatusOK)
}

// ---- sightings ----

func (b *Backend) postsWhere(keep func(model.Post) bool) []model.Post {
	out := []model.Post{}
	for _, p := range sortedValues(b.posts, func(p model.Post) string { return p.ID }) {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (b *Backend) listPosts(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.posts) == 0 {
		writeError(w, http.StatusNotFound, "Posts not found")
		return
	}
	writeJSON(w, http.StatusOK, b.postsWhere(func(model.Post) bool { return true }))
}

func (b *Backend) groupPosts(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	gid := chi.URLParam(r, "groupId")
	if _, ok := b.groups[gid]; !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, b.postsWhere(func(p model.Post) bool { return p.GroupID() == gid }))
}

// post looks up the {id} post; the caller holds mu.
func (b *Backend) post(w http.ResponseWriter, r *http.Request) (model.Post, bool) {
	p, ok := b.posts[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Post not found")
	}
	return p, ok
}

func (b *Backend) getPost(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.post(w, r); ok {
		writeJSON(w, http.StatusOK, p)
	}
}

// createPost stores a new post; the caller holds mu.
func (b *Backend) createPost(author *account, in model.PostInput, image string) model.Post {
	p := model.Post{
		ID: b.next("p"), Header: in.Header, TextBody: in.TextBody,
		Bird: in.Bird, Group: in.Group, Help: in.Help, Tags: in.Tags,
		Likes:     []string{},
		Comments:  []model.Comment{},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		User:      summary(author.user),
	}
	if image != "" {
		img := "/post_images/" + image
		p.Image = &img
	}
	b.posts[p.ID] = p
	author.user.Posts = append(author.user.Posts, p.ID)
	return p
}

func (b *Backend) newPost(w http.ResponseWriter, r *http.Request, me *account) {
	var in model.PostInput
	image, ok := readForm(w, r, "post", &in, "image")
	if !ok {
		return
	}
	if r.FormValue("userId") != me.user.ID {
		writeError(w, http.StatusForbidden, "Author must be the session user")
		return
	}
	if in.Header == "" {
		writeError(w, http.StatusBadRequest, "Header cannot be blank")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusCreated, b.createPost(me, in, image))
}

func (b *Backend) updatePost(w http.ResponseWriter, r *http.Request, me *account) {
	var in model.PostInput
	image, ok := readForm(w, r, "post", &in, "image")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, found := b.post(w, r)
	if !found {
		return
	}
	if !role.CanPerformAction(me.user.ID, me.user.Role, p.User.UserID) {
		writeError(w, http.StatusForbidden, "Cannot edit another user's post")
		return
	}
	p.Header, p.TextBody, p.Bird, p.Help, p.Tags = in.Header, in.TextBody, in.Bird, in.Help, in.Tags
	if image != "" {
		img := "/post_images/" + image
		p.Image = &img
	}
	b.posts[p.ID] = p
	writeJSON(w, http.StatusOK, p)
}

func (b *Backend) deletePost(w http.ResponseWriter, r *http.Request, me *account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, found := b.post(w, r)
	if !found {
		return
	}
	if !role.CanPerformAction(me.user.ID, me.user.Role, p.User.UserID) {
		writeError(w, http.StatusForbidden, "Cannot delete another user's post")
		return
	}
	delete(b.posts, p.ID)
	if a := b.accounts[p.User.UserID]; a != nil {
		a.user.Posts = without(a.user.Posts, func(s string) bool { return s == p.ID })
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) like(add bool) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, me *account) {
		b.mu.Lock()
		defer b.mu.Unlock()
		p, found := b.post(w, r)
		if !found {
			return
		}
		uid := chi.URLParam(r, "userId")
		p.Likes = without(p.Likes, func(s string) bool { return s == uid })
		if add {
			p.Likes = append(p.Likes, uid)
		}
		b.posts[p.ID] = p
		writeJSON(w, http.StatusOK, p)
	}
}

func (b *Backend) addComment(w http.ResponseWriter, r *http.Request, me *account) {
	var in model.CommentInput
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.TextBody == "" {
		writeError(w, http.StatusBadRequest, "Comment cannot be blank")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, found := b.post(w, r)
	if !found {
		return
	}
	p.Comments = append(p.Comments, model.Comment{
		User: summary(me.user), TextBody: in.TextBody,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	b.posts[p.ID] = p
	writeJSON(w, http.StatusCreated, p)
}

func (b *Backend) updateComment(w http.ResponseWriter, r *http.Request, me *account) {
	b.editComment(w, r, me, false)
}

func (b *Backend) deleteComment(w http.ResponseWriter, r *http.Request, me *account) {
	b.editComment(w, r, me, true)
}

func (b *Backend) editComment(w http.ResponseWriter, r *http.Request, me *account, drop bool) {
	var c model.Comment
	_ = json.NewDecoder(r.Body).Decode(&c)
	b.mu.Lock()
	defer b.mu.Unlock()
	p, found := b.post(w, r)
	if !found {
		return
	}
	for i, existing := range p.Comments {
		if existing.User.UserID != c.User.UserID || existing.Timestamp != c.Timestamp {
			continue
		}
		if !role.CanPerformAction(me.user.ID, me.user.Role, existing.User.UserID) {
			writeError(w, http.StatusForbidden, "Cannot change another user's comment")
			return
		}
		if drop {
			p.Comments = append(p.Comments[:i:i], p.Comments[i+1:]...)
		} else {
			p.Comments[i].TextBody = c.TextBody
		}
		b.posts[p.ID] = p
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeError(w, http.StatusNotFound, "Comment not found")
}

// ---- search ----

func (b *Backend) searchAll(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, model.SearchResults{
		Birds:  b.matchBirds(query),
		Users:  b.users(func(u model.User) bool { return contains(u.Username, query) }),
		Groups: b.matchGroups(query, func(model.Group) bool { return true }),
		Posts:  b.matchPosts(query),
	})
}

func (b *Backend) searchKind(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	me := b.session(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	switch chi.URLParam(r, "kind") {
	case "birds":
		writeJSON(w, http.StatusOK, b.matchBirds(query))
	case "users":
		writeJSON(w, http.StatusOK, b.users(func(u model.User) bool { return contains(u.Username, query) }))
	case "friends":
		if me == nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		writeJSON(w, http.StatusOK, b.users(func(u model.User) bool {
			return me.user.HasFriend(u.ID) && contains(u.Username, query)
		}))
	case "groups":
		writeJSON(w, http.StatusOK, b.matchGroups(query, func(model.Group) bool { return true }))
	case "my-groups":
		if me == nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		writeJSON(w, http.StatusOK, b.matchGroups(query, func(g model.Group) bool { return g.IsMember(me.user.ID) }))
	case "posts":
		writeJSON(w, http.StatusOK, b.matchPosts(query))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *Backend) matchGroups(query string, keep func(model.Group) bool) []model.Group {
	out := []model.Group{}
	for _, g := range sortedValues(b.groups, func(g model.Group) string { return g.ID }) {
		if keep(g) && (contains(g.Name, query) || contains(g.Description, query)) {
			out = append(out, g)
		}
	}
	return out
}

func (b *Backend) matchPosts(query string) []model.Post {
	return b.postsWhere(func(p model.Post) bool { return contains(p.Header, query) || contains(p.TextBody, query) })
}

// ---- multipart ----

// readForm decodes the JSON text field part into v and returns the uploaded
// file name under fileField, if any.
func readForm(w http.ResponseWriter, r *http.Request, part string, v any, fileField string) (string, bool) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form")
		return "", false
	}
	if err := json.Unmarshal([]byte(r.FormValue(part)), v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+part)
		return "", false
	}
	return fileName(r, fileField), true
}

func fileName(r *http.Request, field string) string {
	f, h, err := r.FormFile(field)
	if err != nil {
		return ""
	}
	_ = f.Close()
	return h.Filename
}
