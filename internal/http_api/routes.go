package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/health", s.health)

	v1 := s.router.Group("/api/v1")
	v1.POST("/solutions", s.bearerAuth(), s.submitSolution)
	v1.GET("/solutions/:id/preview", s.getPreview)
	v1.POST("/solutions/:id/unlock", s.unlockSolution)
	v1.GET("/solutions/:id", s.getSolution)
}
