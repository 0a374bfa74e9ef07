package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"ulook-server/modules/analyze"
	"ulook-server/modules/chat"
	"ulook-server/modules/common/ark"
	"ulook-server/modules/common/cache"
	"ulook-server/modules/common/config"
	"ulook-server/modules/tryon"
)

// Cache sizing shared by the patch and garment-detail caches
const (
	cacheMaxSize      = 100
	cacheTTL          = 24 * time.Hour
	cacheSweepEvery   = time.Hour
	shutdownGracetime = 10 * time.Second
)

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "ulook-server",
	})
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	arkClient := ark.NewClient(cfg)

	// 공유 캐시 (auto patches / 의류 분석 결과)
	patchesCache := cache.New[[]string](cacheMaxSize, cacheTTL)
	detailsCache := cache.New[tryon.GarmentDetails](cacheMaxSize, cacheTTL)
	stopSweeper := cache.StartSweeper(cacheSweepEvery, patchesCache, detailsCache)
	defer stopSweeper()

	tryonService := tryon.NewService(cfg, arkClient, detailsCache, patchesCache)
	analyzeService := analyze.NewService(cfg, arkClient)
	chatService := chat.NewService(cfg, arkClient)

	// 라우터 설정
	r := mux.NewRouter()

	// CORS 미들웨어 적용
	r.Use(enableCORS)

	// 라우트 설정
	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/api/health", healthCheck).Methods("GET")

	tryon.NewHandler(tryonService).RegisterRoutes(r)
	analyze.NewHandler(analyzeService).RegisterRoutes(r)
	chat.NewHandler(chatService).RegisterRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("🚀 ULook API Server starting on port %s", cfg.Port)
		log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)
		log.Printf("🎨 Image generation: http://localhost:%s/api/image", cfg.Port)
		log.Printf("🔍 Garment analysis: http://localhost:%s/api/analyze", cfg.Port)
		log.Printf("💬 Stylist chat: http://localhost:%s/api/chat", cfg.Port)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// 종료 시그널 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracetime)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
	}
	log.Println("✅ Server stopped")
}
