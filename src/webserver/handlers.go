package webserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ZelmaCorp/VotingTool-sub000/src/reconcile"
	"github.com/ZelmaCorp/VotingTool-sub000/src/types"
	"github.com/ZelmaCorp/VotingTool-sub000/src/workflow"
)

// Passes triggers the two background passes. Both return immediately; the
// work runs as a background task and overlapping runs are skipped by the
// pass guards.
type Passes struct {
	reconciler *reconcile.Reconciler
	wf         *workflow.Manager
}

func NewPasses(reconciler *reconcile.Reconciler, wf *workflow.Manager) Passes {
	return Passes{reconciler: reconciler, wf: wf}
}

func (p Passes) Reconcile(c *gin.Context) {
	go func() {
		if err := p.reconciler.Run(context.Background()); err != nil && !errors.Is(err, reconcile.ErrPassInProgress) {
			log.Printf("webserver: reconcile trigger: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (p Passes) Sweep(c *gin.Context) {
	go func() {
		if _, err := p.wf.SweepDeadlines(context.Background()); err != nil && !errors.Is(err, workflow.ErrSweepInProgress) {
			log.Printf("webserver: sweep trigger: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// Actions records team actions and serves the workflow categorization.
type Actions struct {
	db *gorm.DB
	wf *workflow.Manager
}

func NewActions(db *gorm.DB, wf *workflow.Manager) Actions {
	return Actions{db: db, wf: wf}
}

func (a Actions) Record(c *gin.Context) {
	var req struct {
		Org      uint8  `json:"org" binding:"required"`
		Address  string `json:"address" binding:"required"`
		RoleType string `json:"roleType" binding:"required"`
		Reason   string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	netID, ok := networkID(c.Param("net"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"err": "unknown network"})
		return
	}
	refNum, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad referendum id"})
		return
	}

	var ref types.Ref
	if err := a.db.First(&ref, "network_id = ? AND org_id = ? AND ref_id = ?", netID, req.Org, refNum).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"err": "referendum not found"})
		return
	}

	if err := a.wf.RecordAction(ref.ID, req.Address, req.RoleType, req.Reason); err != nil {
		switch {
		case errors.Is(err, workflow.ErrResponsibleTaken):
			c.JSON(http.StatusConflict, gin.H{"err": err.Error()})
		case errors.Is(err, workflow.ErrUnknownRole):
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		}
		return
	}

	c.Status(http.StatusCreated)
}

func (a Actions) Summary(c *gin.Context) {
	org, err := strconv.ParseUint(c.Query("org"), 10, 8)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "org query parameter required"})
		return
	}

	summary, err := a.wf.Categorize(uint8(org))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func networkID(net string) (uint8, bool) {
	switch strings.ToLower(net) {
	case "polkadot":
		return 1, true
	case "kusama":
		return 2, true
	}
	return 0, false
}
