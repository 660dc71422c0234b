package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/user/tmdb-ratelimit/internal/dashboard"
	"github.com/user/tmdb-ratelimit/internal/middleware"
	"github.com/user/tmdb-ratelimit/internal/tmdb"
)

const (
	movieIDKey = "movies.id"
	pageKey    = "movies.page"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.health)

	dashboard.NewHandler(s.selection).Register(s.engine)

	// Parameters are validated before the rate limiter so a malformed
	// request spends no quota and reports no upstream outcome.
	rl := middleware.RateLimit(s.selection.Limiter)
	movies := s.engine.Group("/api/movies")
	movies.GET("/search", requireQuery, requirePage, rl, s.searchMovies)
	movies.GET("/popular", requirePage, rl, s.movieList(tmdb.ListPopular))
	movies.GET("/top-rated", requirePage, rl, s.movieList(tmdb.ListTopRated))
	movies.GET("/now-playing", requirePage, rl, s.movieList(tmdb.ListNowPlaying))
	movies.GET("/upcoming", requirePage, rl, s.movieList(tmdb.ListUpcoming))
	movies.GET("/genres", rl, s.genres)
	movies.GET("/:id", requireMovieID, rl, s.movieDetails)
	movies.GET("/:id/recommendations", requireMovieID, requirePage, rl, s.recommendations)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"limiter": s.selection.Variant,
	})
}

func (s *Server) searchMovies(c *gin.Context) {
	body, err := s.tmdb.SearchMovies(c.Request.Context(), c.Query("q"), c.GetInt(pageKey))
	s.respond(c, body, err)
}

func (s *Server) movieList(list tmdb.List) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := s.tmdb.MovieList(c.Request.Context(), list, c.GetInt(pageKey))
		s.respond(c, body, err)
	}
}

func (s *Server) genres(c *gin.Context) {
	body, err := s.tmdb.Genres(c.Request.Context())
	s.respond(c, body, err)
}

func (s *Server) movieDetails(c *gin.Context) {
	body, err := s.tmdb.MovieDetails(c.Request.Context(), c.GetInt(movieIDKey))
	s.respond(c, body, err)
}

func (s *Server) recommendations(c *gin.Context) {
	body, err := s.tmdb.Recommendations(c.Request.Context(), c.GetInt(movieIDKey), c.GetInt(pageKey))
	s.respond(c, body, err)
}

// respond writes the upstream body, or records err on the context for the
// rate limit middleware and maps it to a status.
func (s *Server) respond(c *gin.Context, body json.RawMessage, err error) {
	if err == nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	_ = c.Error(err)

	var apiErr *tmdb.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "movie not found"})
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream rate limit reached"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream request failed"})
	}
}

func requireQuery(c *gin.Context) {
	if c.Query("q") == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
	}
}

func requireMovieID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid movie id"})
		return
	}
	c.Set(movieIDKey, id)
}

func requirePage(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	c.Set(pageKey, page)
}
