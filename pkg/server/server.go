package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/grammarkit/mining-service/internal/handlers"
	"github.com/grammarkit/mining-service/internal/services"
)

type Server struct {
	httpAddr        string
	miningService   *services.MiningService
	generateService *services.GenerateService
	grammarService  *services.GrammarService
}

func NewServer(httpAddr string, miningService *services.MiningService, generateService *services.GenerateService, grammarService *services.GrammarService) *Server {
	return &Server{
		httpAddr:        httpAddr,
		miningService:   miningService,
		generateService: generateService,
		grammarService:  grammarService,
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	miningHandler := handlers.NewMiningHandler(s.miningService, s.generateService)
	miningHandler.RegisterRoutes(mux)
	slog.Info("Registered mining endpoints", "endpoints", []string{"/v1/mine", "/v1/generate", "/healthz", "/logs"})

	grammarHandler := handlers.NewGrammarHandler(s.grammarService)
	grammarHandler.RegisterRoutes(mux)
	slog.Info("Registered grammar endpoints", "endpoints", []string{"/grammars"})

	slog.Info("HTTP server starting", "addr", s.httpAddr)

	return http.ListenAndServe(s.httpAddr, mux)
}
