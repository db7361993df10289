package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/velora-commerce/refund-agent/agent/contract"
	"github.com/velora-commerce/refund-agent/store"
)

// RefundAdmin is the back-office surface: refund lifecycle past PENDING and
// read views for support staff. Authentication for these routes is expected
// to live in front of this service.
type RefundAdmin interface {
	RefundsByUser(ctx context.Context, userID int64, threadID string) ([]*store.Refund, error)
	TicketsByUser(ctx context.Context, userID int64) ([]*store.Ticket, error)
	ApproveRefund(ctx context.Context, refundID int64) error
	RejectRefund(ctx context.Context, refundID int64, rejectionReason string) error
	ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error)
	RestoreStock(ctx context.Context, productID int64, quantity int) error
}

func (s *Server) registerAdminRoutes(admin RefundAdmin) {
	s.admin = admin
	s.engine.GET("/users/:user_id/refunds", s.handleListRefunds)
	s.engine.GET("/users/:user_id/tickets", s.handleListTickets)
	s.engine.POST("/refunds/:refund_id/approve", s.handleApproveRefund)
	s.engine.POST("/refunds/:refund_id/reject", s.handleRejectRefund)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleListRefunds(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	refunds, err := s.admin.RefundsByUser(c.Request.Context(), userID, c.Query("thread_id"))
	if err != nil {
		s.log.Error().Int64("user_id", userID).Err(err).Msg("list refunds failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list refunds"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunds": refunds})
}

func (s *Server) handleListTickets(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	tickets, err := s.admin.TicketsByUser(c.Request.Context(), userID)
	if err != nil {
		s.log.Error().Int64("user_id", userID).Err(err).Msg("list tickets failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tickets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

type approveRequest struct {
	ReplacementProductID int64 `json:"replacement_product_id"`
	Quantity             int   `json:"quantity"`
}

// handleApproveRefund approves a pending refund. When a replacement is
// requested the stock is reserved first; a failed status update afterwards
// returns the reserved units.
func (s *Server) handleApproveRefund(c *gin.Context) {
	refundID, ok := pathID(c, "refund_id")
	if !ok {
		return
	}

	var req approveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
			return
		}
	}

	ctx := c.Request.Context()
	reserved := false
	if req.ReplacementProductID > 0 {
		qty := req.Quantity
		if qty <= 0 {
			qty = 1
			req.Quantity = 1
		}
		ok, err := s.admin.ReserveStock(ctx, req.ReplacementProductID, qty)
		if err != nil {
			s.log.Error().Int64("refund_id", refundID).Err(err).Msg("reserve stock failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reserve replacement stock"})
			return
		}
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "replacement product is out of stock"})
			return
		}
		reserved = true
	}

	if err := s.admin.ApproveRefund(ctx, refundID); err != nil {
		if reserved {
			if rerr := s.admin.RestoreStock(ctx, req.ReplacementProductID, req.Quantity); rerr != nil {
				s.log.Error().Int64("refund_id", refundID).Err(rerr).Msg("restore stock failed")
			}
		}
		if errors.Is(err, contract.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "refund not found"})
			return
		}
		s.log.Error().Int64("refund_id", refundID).Err(err).Msg("approve refund failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to approve refund"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"refund_id": refundID, "status": store.RefundApproved})
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) handleRejectRefund(c *gin.Context) {
	refundID, ok := pathID(c, "refund_id")
	if !ok {
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	if err := s.admin.RejectRefund(c.Request.Context(), refundID, req.Reason); err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "refund not found"})
			return
		}
		s.log.Error().Int64("refund_id", refundID).Err(err).Msg("reject refund failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reject refund"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"refund_id": refundID, "status": store.RefundRejected})
}
