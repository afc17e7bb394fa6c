package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/authr/internal/datastore"
	"github.com/smallbiznis/authr/internal/records"
	"github.com/smallbiznis/authr/internal/storage"
)

type dataHandler interface {
	list(c *gin.Context, p principal)
	get(c *gin.Context, p principal, id int64)
	create(c *gin.Context, p principal)
	update(c *gin.Context, p principal, id int64)
	remove(c *gin.Context, p principal, id int64)
}

// resource serves one record kind over the generic store contract.
type resource[T storage.Record] struct {
	store storage.Store[T]
	// decode binds the request body. id is the path id on update, nil on create.
	decode func(c *gin.Context, p principal, id *int64) (storage.Request[T], error)
	// scope restricts list results for non-admins.
	scope func(p principal) []storage.Predicate
	// visible reports whether p may see rec; hidden records read as absent.
	visible func(p principal, rec T) bool
}

func newDataHandlers(stores *datastore.Stores) map[string]dataHandler {
	return map[string]dataHandler{
		records.KindUsers.String(): &resource[records.User]{
			store: stores.Users,
			decode: func(c *gin.Context, _ principal, id *int64) (storage.Request[records.User], error) {
				var req records.UserRequest
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, ErrInvalidRequest
				}
				if id != nil {
					req.ID = id
				}
				return &req, nil
			},
			scope: func(p principal) []storage.Predicate {
				return []storage.Predicate{storage.Equal("id", p.actor.UserID)}
			},
			visible: func(p principal, u records.User) bool {
				return u.ID == p.actor.UserID
			},
		},
		records.KindNotes.String(): &resource[records.Note]{
			store: stores.Notes,
			decode: func(c *gin.Context, p principal, id *int64) (storage.Request[records.Note], error) {
				var req records.NoteRequest
				if err := c.ShouldBindJSON(&req); err != nil {
					return nil, ErrInvalidRequest
				}
				if id != nil {
					req.ID = id
				}
				switch {
				case !p.admin && id == nil:
					owner := p.actor.UserID
					req.OwnerID = &owner
				case !p.admin:
					req.OwnerID = nil
				case req.OwnerID == nil && id == nil:
					owner := p.actor.UserID
					req.OwnerID = &owner
				}
				return &req, nil
			},
			scope: func(p principal) []storage.Predicate {
				return []storage.Predicate{storage.Equal("owner_id", p.actor.UserID)}
			},
			visible: func(p principal, n records.Note) bool {
				return n.OwnerID == p.actor.UserID
			},
		},
	}
}

func (r *resource[T]) list(c *gin.Context, p principal) {
	preds, err := parsePredicates(storage.SchemaOf[T](), c.Request.URL.Query())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !p.admin {
		preds = append(preds, r.scope(p)...)
	}

	items, err := r.store.GetQueries(c.Request.Context(), preds)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (r *resource[T]) get(c *gin.Context, p principal, id int64) {
	rec, err := r.load(c, p, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *resource[T]) create(c *gin.Context, p principal) {
	req, err := r.decode(c, p, nil)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	rec, err := r.store.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (r *resource[T]) update(c *gin.Context, p principal, id int64) {
	if _, err := r.load(c, p, id); err != nil {
		AbortWithError(c, err)
		return
	}
	req, err := r.decode(c, p, &id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	rec, err := r.store.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *resource[T]) remove(c *gin.Context, p principal, id int64) {
	if _, err := r.load(c, p, id); err != nil {
		AbortWithError(c, err)
		return
	}
	rec, err := r.store.Delete(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// load fetches id and hides records p may not see.
func (r *resource[T]) load(c *gin.Context, p principal, id int64) (*T, error) {
	rec, err := r.store.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if rec == nil || (!p.admin && !r.visible(p, *rec)) {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Server) dataRequest(c *gin.Context) (dataHandler, principal, bool) {
	kind, err := records.ParseKind(c.Param("kind"))
	if err != nil {
		AbortWithError(c, err)
		return nil, principal{}, false
	}
	handler, ok := s.data[kind.String()]
	if !ok {
		AbortWithError(c, records.ErrUnknownKind)
		return nil, principal{}, false
	}
	p, ok := currentPrincipal(c, s.authzSvc)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return nil, principal{}, false
	}
	return handler, p, true
}

func (s *Server) ListRecords(c *gin.Context) {
	if h, p, ok := s.dataRequest(c); ok {
		h.list(c, p)
	}
}

func (s *Server) CreateRecord(c *gin.Context) {
	if h, p, ok := s.dataRequest(c); ok {
		h.create(c, p)
	}
}

func (s *Server) GetRecord(c *gin.Context) {
	h, p, ok := s.dataRequest(c)
	if !ok {
		return
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	h.get(c, p, id)
}

func (s *Server) UpdateRecord(c *gin.Context) {
	h, p, ok := s.dataRequest(c)
	if !ok {
		return
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	h.update(c, p, id)
}

func (s *Server) DeleteRecord(c *gin.Context) {
	h, p, ok := s.dataRequest(c)
	if !ok {
		return
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	h.remove(c, p, id)
}
