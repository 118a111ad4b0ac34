package app

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/copperhead/attestation-server/internal/store"
	"github.com/copperhead/attestation-server/pkg/attest"
	"github.com/copperhead/attestation-server/pkg/challenge"
	"github.com/copperhead/attestation-server/pkg/protocol"
)

var (
	challengesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attestation_challenges_issued_total",
		Help: "Number of challenges issued to Auditors.",
	})
	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attestation_verifications_total",
		Help: "Number of attestation verifications by result.",
	}, []string{"result"})
	samplesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attestation_samples_submitted_total",
		Help: "Number of samples accepted by the submit endpoint.",
	})
)

// Controller serves the attestation protocol endpoints.
type Controller struct {
	verifier   *attest.Verifier
	challenges *challenge.Store
	store      *store.Store
	logger     *zerolog.Logger
}

// NewController creates a controller around the verification engine and its
// collaborators.
func NewController(verifier *attest.Verifier, challenges *challenge.Store, s *store.Store, logger *zerolog.Logger) *Controller {
	return &Controller{verifier: verifier, challenges: challenges, store: s, logger: logger}
}

// GetChallenge issues a fresh challenge frame for the Auditee.
func (c *Controller) GetChallenge(ctx *fiber.Ctx) error {
	msg, err := c.challenges.IssueMessage()
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to issue challenge")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to issue challenge")
	}
	challengesIssued.Inc()
	ctx.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return ctx.Send(msg)
}

// PostVerify verifies a serialized attestation message and responds with the
// textual report.
func (c *Controller) PostVerify(ctx *fiber.Ctx) error {
	payload := ctx.Body()
	if len(payload) > protocol.MaxMessageSize {
		verifications.WithLabelValues("rejected").Inc()
		return fiber.NewError(fiber.StatusBadRequest, protocol.ErrMessageTooLarge.Error())
	}

	result, err := c.verifier.VerifySerialized(ctx.Context(), payload)
	if err != nil {
		var protocolErr protocol.ProtocolError
		var verificationErr attest.VerificationError
		if errors.As(err, &protocolErr) || errors.As(err, &verificationErr) {
			verifications.WithLabelValues("rejected").Inc()
			c.logger.Info().Err(err).Msg("Rejected attestation")
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		verifications.WithLabelValues("error").Inc()
		c.logger.Error().Err(err).Msg("Failed to verify attestation")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to verify attestation")
	}

	verifications.WithLabelValues("verified").Inc()
	c.logger.Info().Bool("strong", result.Strong).Msg("Verified attestation")
	ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return ctx.SendString(result.TEEEnforced + "\n" + result.OSEnforced)
}

// PostSubmit stores a raw sample submission. Bodies above the submit limit
// are rejected by the server body limit before reaching this handler.
func (c *Controller) PostSubmit(ctx *fiber.Ctx) error {
	sample := ctx.Body()
	if len(sample) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Empty sample")
	}
	if err := c.store.InsertSample(ctx.Context(), sample); err != nil {
		c.logger.Error().Err(err).Msg("Failed to store sample")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to store sample")
	}
	samplesSubmitted.Inc()
	return ctx.SendString("Success\n")
}
