package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kwikflow/internal/repo"
)

type consultationRequest struct {
	FullName string  `json:"fullName" binding:"required,max=200"`
	Email    string  `json:"email" binding:"required,email,max=320"`
	Message  string  `json:"message" binding:"required,max=5000"`
	Company  *string `json:"company" binding:"omitempty,max=200"`
	Phone    *string `json:"phone" binding:"omitempty,max=50"`
	Systems  *string `json:"systems" binding:"omitempty,max=2000"`
}

type leadRequest struct {
	Email              string      `json:"email" binding:"required,email,max=320"`
	InterestedFeatures featureList `json:"interestedFeatures" binding:"required,min=1"`
	ContactName        *string     `json:"contactName" binding:"omitempty,max=200"`
	CompanyName        *string     `json:"companyName" binding:"omitempty,max=200"`
	Phone              *string     `json:"phone" binding:"omitempty,max=50"`
	Role               *string     `json:"role" binding:"omitempty,max=200"`
	Message            *string     `json:"message" binding:"omitempty,max=5000"`
	PreferredPlan      *string     `json:"preferredPlan" binding:"omitempty,max=100"`
}

// POST /api/consultation-requests
func (h *handlers) createConsultation(c *gin.Context) {
	var body consultationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	req, err := h.svc.SubmitConsultation(c.Request.Context(), repo.NewConsultationRequest{
		FullName: body.FullName,
		Company:  body.Company,
		Email:    body.Email,
		Phone:    body.Phone,
		Systems:  body.Systems,
		Message:  body.Message,
	})
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Consultation request received", "id": req.ID})
}

// POST /api/leads
func (h *handlers) createLead(c *gin.Context) {
	var body leadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}
	lead, err := h.svc.SubmitLead(c.Request.Context(), repo.NewLead{
		ContactName:        body.ContactName,
		Email:              body.Email,
		CompanyName:        body.CompanyName,
		Phone:              body.Phone,
		Role:               body.Role,
		Message:            body.Message,
		InterestedFeatures: body.InterestedFeatures.String(),
		PreferredPlan:      body.PreferredPlan,
	})
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Lead received", "id": lead.ID})
}

// GET /api/consultation-requests
func (h *handlers) listConsultations(c *gin.Context) {
	reqs, err := h.svc.ListConsultationRequests(c.Request.Context())
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

// GET /api/leads
func (h *handlers) listLeads(c *gin.Context) {
	leads, err := h.svc.ListLeads(c.Request.Context())
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, leads)
}

// GET /api/health
func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Health(c.Request.Context()))
}

// GET /api/statistics
func (h *handlers) statistics(c *gin.Context) {
	stats, err := h.svc.Statistics(c.Request.Context())
	if err != nil {
		respondInternal(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
