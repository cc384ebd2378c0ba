// Package backendtest provides an in-memory record store with the same HTTP
// surface the adapters speak in production: collection CRUD with a filter
// subset, an SSE change stream per collection and password auth issuing
// HS256 tokens. Tests point a Client at Server.URL and run end to end
// without a real backend.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var signingKey = []byte("backendtest-signing-key")

// User is a test account accepted by the auth endpoint.
type User struct {
	ID       string
	Name     string
	Email    string
	Password string
}

type event struct {
	collection string
	action     string
	record     map[string]any
}

// Server is the in-memory record store.
type Server struct {
	httpServer *httptest.Server

	mu          sync.Mutex
	records     map[string]map[string]map[string]any
	order       map[string][]string
	users       []User
	subscribers map[string][]chan event

	// FailWrites makes every create, update and delete return 500, for
	// exercising rollback paths.
	FailWrites bool
}

// New starts an empty record store.
func New() *Server {
	s := &Server{
		records:     make(map[string]map[string]map[string]any),
		order:       make(map[string][]string),
		subscribers: make(map[string][]chan event),
	}

	e := echo.New()
	e.HideBanner = true
	e.POST("/api/auth/with-password", s.handleAuth)
	e.POST("/api/auth/refresh", s.handleRefresh)
	e.GET("/api/realtime", s.handleRealtime)
	e.GET("/api/collections/:collection/records", s.handleList)
	e.GET("/api/collections/:collection/records/:id", s.handleGet)
	e.POST("/api/collections/:collection/records", s.handleCreate)
	e.PATCH("/api/collections/:collection/records/:id", s.handleUpdate)
	e.DELETE("/api/collections/:collection/records/:id", s.handleDelete)

	s.httpServer = httptest.NewServer(e)
	return s
}

// URL returns the base URL of the store.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Close shuts the store down.
func (s *Server) Close() {
	s.mu.Lock()
	for _, subs := range s.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	s.subscribers = make(map[string][]chan event)
	s.mu.Unlock()
	s.httpServer.Close()
}

// AddUser registers an account for the auth endpoint.
func (s *Server) AddUser(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, user)
}

// Seed inserts a record directly, without an event. Returns the assigned id.
func (s *Server) Seed(collection string, record map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(collection, record)
}

// Emit publishes a change event without touching stored records, for
// simulating out-of-order or foreign deliveries.
func (s *Server) Emit(collection, action string, record map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(event{collection: collection, action: action, record: record})
}

// Record returns a copy of one stored record, or nil.
func (s *Server) Record(collection, id string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[collection][id]
	if !ok {
		return nil
	}
	return cloneRecord(stored)
}

// Count returns the number of records in a collection.
func (s *Server) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[collection])
}

func (s *Server) handleAuth(c echo.Context) error {
	var body struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == body.Identity && user.Password == body.Password {
			return c.JSON(http.StatusOK, s.authPayload(user))
		}
	}
	return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
}

func (s *Server) handleRefresh(c echo.Context) error {
	token := c.Request().Header.Get("Authorization")
	claims := jwt.MapClaims{}
	parsed, err := jwt.NewParser().ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid token"})
	}
	subject, _ := claims.GetSubject()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == subject {
			return c.JSON(http.StatusOK, s.authPayload(user))
		}
	}
	return c.JSON(http.StatusUnauthorized, map[string]string{"message": "unknown subject"})
}

func (s *Server) authPayload(user User) map[string]any {
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(signingKey)
	return map[string]any{
		"token": token,
		"record": map[string]any{
			"id":   user.ID,
			"name": user.Name,
		},
	}
}

func (s *Server) handleRealtime(c echo.Context) error {
	collection := c.QueryParam("collection")
	if collection == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "collection required"})
	}
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "streaming unsupported"})
	}

	ch := make(chan event, 64)
	s.mu.Lock()
	s.subscribers[collection] = append(s.subscribers[collection], ch)
	s.mu.Unlock()
	defer s.unsubscribe(collection, ch)

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(ev.record)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", ev.action, payload)
			flusher.Flush()
		}
	}
}

func (s *Server) unsubscribe(collection string, ch chan event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subscribers[collection]
	for i, sub := range subs {
		if sub == ch {
			s.subscribers[collection] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (s *Server) handleList(c echo.Context) error {
	collection := c.Param("collection")
	filter := c.QueryParam("filter")
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.QueryParam("perPage"))
	if perPage < 1 {
		perPage = 30
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []map[string]any
	for _, id := range s.order[collection] {
		record := s.records[collection][id]
		if matchFilter(record, filter) {
			matches = append(matches, cloneRecord(record))
		}
	}

	start := (page - 1) * perPage
	if start > len(matches) {
		start = len(matches)
	}
	end := start + perPage
	if end > len(matches) {
		end = len(matches)
	}
	items := matches[start:end]
	if items == nil {
		items = []map[string]any{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items":      items,
		"totalItems": len(matches),
	})
}

func (s *Server) handleGet(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[c.Param("collection")][c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "not found"})
	}
	return c.JSON(http.StatusOK, cloneRecord(record))
}

func (s *Server) handleCreate(c echo.Context) error {
	collection := c.Param("collection")
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "writes disabled"})
	}

	id := s.insertLocked(collection, body)
	record := s.records[collection][id]
	s.broadcastLocked(event{collection: collection, action: "create", record: cloneRecord(record)})
	return c.JSON(http.StatusOK, cloneRecord(record))
}

func (s *Server) handleUpdate(c echo.Context) error {
	collection := c.Param("collection")
	id := c.Param("id")
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid body"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "writes disabled"})
	}

	record, ok := s.records[collection][id]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "not found"})
	}
	for field, value := range body {
		if field == "id" || value == nil {
			continue
		}
		record[field] = value
	}
	s.broadcastLocked(event{collection: collection, action: "update", record: cloneRecord(record)})
	return c.JSON(http.StatusOK, cloneRecord(record))
}

func (s *Server) handleDelete(c echo.Context) error {
	collection := c.Param("collection")
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "writes disabled"})
	}

	record, ok := s.records[collection][id]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "not found"})
	}
	delete(s.records[collection], id)
	for i, stored := range s.order[collection] {
		if stored == id {
			s.order[collection] = append(s.order[collection][:i], s.order[collection][i+1:]...)
			break
		}
	}
	s.broadcastLocked(event{collection: collection, action: "delete", record: cloneRecord(record)})
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) insertLocked(collection string, record map[string]any) string {
	id, _ := record["id"].(string)
	if id == "" {
		id = gonanoid.MustGenerate(idAlphabet, 15)
	}
	stored := cloneRecord(record)
	stored["id"] = id

	if s.records[collection] == nil {
		s.records[collection] = make(map[string]map[string]any)
	}
	s.records[collection][id] = stored
	s.order[collection] = append(s.order[collection], id)
	return id
}

func (s *Server) broadcastLocked(ev event) {
	for _, ch := range s.subscribers[ev.collection] {
		select {
		case ch <- ev:
		default:
			// A stalled subscriber drops events rather than blocking the store.
		}
	}
}

// matchFilter evaluates the filter subset the adapters emit: equality
// clauses `field="value"` joined either all by " && " or all by " || ".
func matchFilter(record map[string]any, filter string) bool {
	if filter == "" {
		return true
	}
	if strings.Contains(filter, "||") {
		for _, clause := range strings.Split(filter, "||") {
			if matchClause(record, clause) {
				return true
			}
		}
		return false
	}
	for _, clause := range strings.Split(filter, "&&") {
		if !matchClause(record, clause) {
			return false
		}
	}
	return true
}

func matchClause(record map[string]any, clause string) bool {
	parts := strings.SplitN(strings.TrimSpace(clause), "=", 2)
	if len(parts) != 2 {
		return false
	}
	field := strings.TrimSpace(parts[0])
	value := strings.Trim(strings.TrimSpace(parts[1]), `"`)
	stored, ok := record[field].(string)
	return ok && stored == value
}

func cloneRecord(record map[string]any) map[string]any {
	clone := make(map[string]any, len(record))
	for field, value := range record {
		clone[field] = value
	}
	return clone
}
