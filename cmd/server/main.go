package main

import (
	"net/http"

	"chathub/internal/api/handlers"
	"chathub/internal/auth"
	"chathub/internal/config"
	"chathub/internal/llm"
	"chathub/internal/logger"
	"chathub/internal/repository/postgres"
	"chathub/internal/service/attachment"
	chatService "chathub/internal/service/chat"
	conversationService "chathub/internal/service/conversation"
	"chathub/internal/service/memory"
	"chathub/internal/token"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load configuration")
	}

	store, err := postgres.NewPostgresStore(cfg.Database)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	counter, err := token.NewTokenizer()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize tokenizer")
	}

	uploads, err := attachment.NewService(cfg.Upload)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize upload storage")
	}

	mem := memory.NewInMemoryStore(nil)
	transport := llm.NewHTTPTransport(&cfg.LLM)

	chat := chatService.NewChatService(store, transport, counter, cfg.Models, mem, &cfg.LLM)
	conversations := conversationService.NewConversationService(store, mem, uploads)
	authService := auth.NewService(store, cfg.Auth)
	chatHandlers := handlers.NewChatHandlers(chat, conversations, uploads, cfg.Models)

	mux := http.NewServeMux()

	corsHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.WriteHeader(http.StatusOK)
	}

	// Public routes
	mux.HandleFunc("POST /api/login", enableCORS(authService.LoginHandler))
	mux.HandleFunc("OPTIONS /api/login", corsHandler)
	mux.HandleFunc("POST /api/register", enableCORS(authService.RegisterHandler))
	mux.HandleFunc("OPTIONS /api/register", corsHandler)
	mux.HandleFunc("GET /api/health", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	mux.HandleFunc("OPTIONS /api/health", corsHandler)
	mux.HandleFunc("GET /api/models", enableCORS(chatHandlers.GetModelsHandler))
	mux.HandleFunc("OPTIONS /api/models", corsHandler)

	// Protected chat routes
	mux.HandleFunc("POST /api/chat/stream", enableCORS(authService.Middleware(chatHandlers.ChatStreamHandler)))
	mux.HandleFunc("OPTIONS /api/chat/stream", corsHandler)
	mux.HandleFunc("PUT /api/messages/{id}", enableCORS(authService.Middleware(chatHandlers.EditMessageHandler)))
	mux.HandleFunc("OPTIONS /api/messages/{id}", corsHandler)
	mux.HandleFunc("POST /api/upload", enableCORS(authService.Middleware(chatHandlers.UploadHandler)))
	mux.HandleFunc("OPTIONS /api/upload", corsHandler)

	// Protected conversation routes
	mux.HandleFunc("GET /api/conversations", enableCORS(authService.Middleware(chatHandlers.GetConversationsHandler)))
	mux.HandleFunc("OPTIONS /api/conversations", corsHandler)
	mux.HandleFunc("GET /api/conversations/{id}/messages", enableCORS(authService.Middleware(chatHandlers.GetConversationMessagesHandler)))
	mux.HandleFunc("OPTIONS /api/conversations/{id}/messages", corsHandler)
	mux.HandleFunc("POST /api/conversations/{id}/regenerate", enableCORS(authService.Middleware(chatHandlers.RegenerateHandler)))
	mux.HandleFunc("OPTIONS /api/conversations/{id}/regenerate", corsHandler)
	mux.HandleFunc("GET /api/memory/search", enableCORS(authService.Middleware(chatHandlers.SearchMemoryHandler)))
	mux.HandleFunc("OPTIONS /api/memory/search", corsHandler)
	mux.HandleFunc("PATCH /api/conversations/{id}", enableCORS(authService.Middleware(chatHandlers.RenameConversationHandler)))
	mux.HandleFunc("DELETE /api/conversations/{id}", enableCORS(authService.Middleware(chatHandlers.DeleteConversationHandler)))
	mux.HandleFunc("OPTIONS /api/conversations/{id}", corsHandler)

	// Stored uploads are served back by URL.
	uploadPrefix := cfg.Upload.BaseURL + "/"
	mux.Handle("GET "+uploadPrefix, http.StripPrefix(uploadPrefix, http.FileServer(http.Dir(cfg.Upload.Dir))))

	logger.Log.WithField("port", cfg.Server.Port).Info("Server starting")

	if err := http.ListenAndServe(":"+cfg.Server.Port, mux); err != nil {
		logger.Log.WithError(err).Fatal("Server failed to start")
	}
}
