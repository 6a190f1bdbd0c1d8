package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justthetip/treasury_service/internal/domain/entities"
	"github.com/justthetip/treasury_service/internal/domain/services"
	"github.com/justthetip/treasury_service/pkg/logger"
)

// MultiSigHandlers exposes treasury wallets and proposals over HTTP.
type MultiSigHandlers struct {
	service *services.MultiSigService
	logger  *logger.Logger
}

// NewMultiSigHandlers creates multi-sig handlers.
func NewMultiSigHandlers(service *services.MultiSigService, log *logger.Logger) *MultiSigHandlers {
	return &MultiSigHandlers{service: service, logger: log}
}

// CreateWallet handles POST /multisig/wallets.
func (h *MultiSigHandlers) CreateWallet(c *gin.Context) {
	var input entities.CreateMultiSigWalletInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	wallet, err := h.service.CreateMultiSigWallet(c.Request.Context(), &input, getActorID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondCreated(c, wallet)
}

// GetWallet handles GET /multisig/wallets/:address.
func (h *MultiSigHandlers) GetWallet(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		respondBadRequest(c, "address is required")
		return
	}

	wallet, err := h.service.GetMultiSigWallet(c.Request.Context(), address)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, wallet)
}

// CreateProposal handles POST /multisig/proposals.
func (h *MultiSigHandlers) CreateProposal(c *gin.Context) {
	var input entities.CreateProposalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if input.ProposerID == "" {
		input.ProposerID = getActorID(c)
	}
	if input.ProposerID == "" {
		respondBadRequest(c, "proposer_id is required")
		return
	}

	proposal, err := h.service.CreateProposal(c.Request.Context(), &input)
	if err != nil {
		if proposal != nil {
			c.JSON(http.StatusBadGateway, gin.H{"proposal": proposal, "error": err.Error()})
			return
		}
		respondDomainError(c, err)
		return
	}

	respondCreated(c, proposal)
}

// GetProposal handles GET /multisig/proposals/:id.
func (h *MultiSigHandlers) GetProposal(c *gin.Context) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid proposal id")
		return
	}

	proposal, err := h.service.GetProposal(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, proposal)
}

// ListOpenProposals handles GET /multisig/proposals. An optional
// multisig_address query narrows the listing to one wallet.
func (h *MultiSigHandlers) ListOpenProposals(c *gin.Context) {
	proposals, err := h.service.ListOpenProposals(c.Request.Context(), c.Query("multisig_address"))
	if err != nil {
		h.logger.Error("Failed to list open proposals", "error", err, "request_id", getRequestID(c))
		respondInternalError(c, "failed to list open proposals")
		return
	}

	respondSuccess(c, gin.H{"proposals": proposals, "count": len(proposals)})
}

// ApproveProposal handles POST /multisig/proposals/:id/approve.
func (h *MultiSigHandlers) ApproveProposal(c *gin.Context) {
	id, err := parseUUID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid proposal id")
		return
	}

	var input entities.ApproveProposalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if input.SignerID == "" {
		input.SignerID = getActorID(c)
	}
	if input.SignerID == "" {
		respondBadRequest(c, "signer_id is required")
		return
	}

	proposal, err := h.service.ApproveProposal(c.Request.Context(), id, &input)
	if err != nil {
		if proposal != nil {
			c.JSON(http.StatusBadGateway, gin.H{"proposal": proposal, "error": err.Error()})
			return
		}
		respondDomainError(c, err)
		return
	}

	respondSuccess(c, proposal)
}
