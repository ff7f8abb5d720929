package webserver

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ZelmaCorp/VotingTool-sub000/src/reconcile"
	"github.com/ZelmaCorp/VotingTool-sub000/src/workflow"
)

// New builds the trigger-surface router: plain callable operations for the
// scheduler and internal tools. Authentication lives in a fronting layer.
func New(db *gorm.DB, reconciler *reconcile.Reconciler, wf *workflow.Manager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"http://localhost:3000"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	passH := NewPasses(reconciler, wf)
	actionH := NewActions(db, wf)

	v1 := r.Group("/v1")
	{
		v1.POST("/reconcile", passH.Reconcile)
		v1.POST("/sweep", passH.Sweep)
		v1.POST("/refs/:net/:id/actions", actionH.Record)
		v1.GET("/workflow", actionH.Summary)
	}

	return r
}

// Run serves the router until the context is cancelled.
func Run(ctx context.Context, router *gin.Engine, port string) error {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("webserver: shutdown: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
