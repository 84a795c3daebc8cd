package posts

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/boardposts/internal/db"
	"github.com/2beens/boardposts/internal/telemetry/metrics"
	"github.com/2beens/boardposts/pkg"
)

//go:generate mockgen -source=handler.go -destination=repo_mock_test.go -package=posts_test

type postsRepo interface {
	List(ctx context.Context) ([]Post, error)
	Add(ctx context.Context, post *Post) error
	Update(ctx context.Context, id int64, title, content string) error
	Delete(ctx context.Context, id int64) error
}

type Handler struct {
	repo    postsRepo
	metrics *metrics.Manager
}

func NewHandler(
	repo postsRepo,
	metrics *metrics.Manager,
) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metrics,
	}
}

// SetupRoutes registers the posts routes on router. namePrefix keeps route
// names unique when the same handler is mounted more than once.
func (handler *Handler) SetupRoutes(router *mux.Router, namePrefix string) {
	router.HandleFunc("/posts", handler.HandleList).Methods("GET", "OPTIONS").Name(namePrefix + "list-posts")
	router.HandleFunc("/posts", handler.HandleCreate).Methods("POST", "OPTIONS").Name(namePrefix + "new-post")
	router.HandleFunc("/posts/{id:[0-9]+}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name(namePrefix + "update-post")
	router.HandleFunc("/posts/{id:[0-9]+}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name(namePrefix + "delete-post")
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := handler.repo.List(r.Context())
	if err != nil {
		log.Errorf("list posts: %s", err)
		handler.writeError(w, err)
		return
	}

	if posts == nil {
		posts = []Post{}
	}

	pkg.WriteJSONResponseOK(w, posts)
}

func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	title, content, err := decodePostRequest(r.Body)
	if err != nil {
		log.Debugf("create post, bad request: %s", err)
		handler.writeError(w, err)
		return
	}

	post := &Post{
		Title:   title,
		Content: content,
	}
	if err := handler.repo.Add(r.Context(), post); err != nil {
		log.Errorf("add new post [%s]: %s", post.Title, err)
		handler.writeError(w, err)
		return
	}

	if handler.metrics != nil {
		handler.metrics.CounterPostsCreated.Inc()
	}

	log.Tracef("new post %d: [%s] added", post.ID, post.Title)
	pkg.WriteJSONResponse(w, messageResponse{Message: "created"}, http.StatusCreated)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, inRange := postID(r)

	title, content, err := decodePostRequest(r.Body)
	if err != nil {
		log.Debugf("update post %s, bad request: %s", mux.Vars(r)["id"], err)
		handler.writeError(w, err)
		return
	}

	if !inRange {
		log.Tracef("post %s not updated, no such post", mux.Vars(r)["id"])
		pkg.WriteJSONResponseOK(w, messageResponse{Message: "updated"})
		return
	}

	if err := handler.repo.Update(r.Context(), id, title, content); err != nil {
		log.Errorf("update post %d: %s", id, err)
		handler.writeError(w, err)
		return
	}

	pkg.WriteJSONResponseOK(w, messageResponse{Message: "updated"})
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, inRange := postID(r)
	if !inRange {
		log.Tracef("post %s not deleted, no such post", mux.Vars(r)["id"])
		pkg.WriteJSONResponseOK(w, messageResponse{Message: "deleted"})
		return
	}

	if err := handler.repo.Delete(r.Context(), id); err != nil {
		log.Errorf("delete post %d: %s", id, err)
		handler.writeError(w, err)
		return
	}

	pkg.WriteJSONResponseOK(w, messageResponse{Message: "deleted"})
}

// postID reads the {id} route var. The route pattern already guarantees
// digits; an id beyond int64 cannot name a stored post and reports false.
func postID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (handler *Handler) writeError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	var connErr *db.ConnectionError
	switch {
	case errors.As(err, &validationErr):
		pkg.WriteJSONError(w, validationErr.Error(), validationErr.Fields, http.StatusBadRequest)
	case errors.As(err, &connErr), pkg.IsConnectionFailure(err):
		if handler.metrics != nil {
			handler.metrics.CounterDBConnectFailures.Inc()
		}
		pkg.WriteJSONError(w, "database unavailable", nil, http.StatusServiceUnavailable)
	default:
		pkg.WriteJSONError(w, "internal server error", nil, http.StatusInternalServerError)
	}
}
