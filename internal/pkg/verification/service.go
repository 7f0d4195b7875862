package verification

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ServiAPP/serviapp/app/models"
	"github.com/ServiAPP/serviapp/internal/pkg/mail"
)

var (
	ErrNotConfigured = errors.New("verification is not configured")
	ErrInvalidInput  = errors.New("invalid verification request")
	ErrAIFailed      = errors.New("verification provider failed")
)

// ObjectSigner issues short-lived read URLs for stored uploads.
type ObjectSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ProfileStore is the profile persistence the service needs.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	UpdateVerification(ctx context.Context, id, status string, verifiedAt *time.Time) error
}

// Request names two uploads inside the caller's storage folder.
type Request struct {
	DocumentPath string `json:"document_path" validate:"required,max=512"`
	SelfiePath   string `json:"selfie_path" validate:"required,max=512"`
}

// Result is returned to the client.
type Result struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type Service struct {
	signer        ObjectSigner
	matcher       Matcher
	profiles      ProfileStore
	notifier      mail.Sender
	minConfidence float64
	presignTTL    time.Duration
	validate      *validator.Validate
}

// NewService wires the verification flow. A nil signer or matcher leaves the
// service unconfigured; a nil notifier skips the result email.
func NewService(cfg Config, signer ObjectSigner, matcher Matcher, profiles ProfileStore, notifier mail.Sender) *Service {
	minConfidence := cfg.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Service{
		signer:        signer,
		matcher:       matcher,
		profiles:      profiles,
		notifier:      notifier,
		minConfidence: minConfidence,
		presignTTL:    cfg.PresignTTL,
		validate:      validator.New(),
	}
}

func (s *Service) Configured() bool {
	return s != nil && s.signer != nil && s.matcher != nil && s.profiles != nil
}

// Verify compares the document and selfie and stores the outcome on the profile.
func (s *Service) Verify(ctx context.Context, userID string, req Request, now time.Time) (*Result, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	prefix := models.ProfileStoragePrefix(userID)
	docKey, err := ownedKey(prefix, req.DocumentPath)
	if err != nil {
		return nil, err
	}
	selfieKey, err := ownedKey(prefix, req.SelfiePath)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	urls := make([]string, 0, 2)
	for _, key := range []string{docKey, selfieKey} {
		ok, err := s.signer.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check upload %s: %w", key, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s does not exist", ErrInvalidInput, key)
		}
		u, err := s.signer.PresignGet(ctx, key, s.presignTTL)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", key, err)
		}
		urls = append(urls, u)
	}

	verdict, err := s.matcher.Compare(ctx, urls[0], urls[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIFailed, err)
	}

	result := &Result{
		Status:     models.VerificationRejected,
		Confidence: verdict.Confidence,
		Reason:     verdict.Reason,
	}
	var verifiedAt *time.Time
	if verdict.Match && verdict.Confidence >= s.minConfidence {
		result.Status = models.VerificationVerified
		t := now.UTC()
		verifiedAt = &t
	}

	if err := s.profiles.UpdateVerification(ctx, userID, result.Status, verifiedAt); err != nil {
		return nil, fmt.Errorf("store verification result: %w", err)
	}
	log.Infof("[Verification] user=%s status=%s confidence=%.2f", userID, result.Status, result.Confidence)

	s.notify(ctx, profile, result)
	return result, nil
}

// notify is best effort; the stored status is authoritative.
func (s *Service) notify(ctx context.Context, profile *models.Profile, result *Result) {
	if s.notifier == nil || profile.Email == "" {
		return
	}
	msg, err := mail.VerificationResultEmail(profile.Email, mail.VerificationResultData{
		Name:     profile.FullName,
		Verified: result.Status == models.VerificationVerified,
		Reason:   result.Reason,
	})
	if err != nil {
		log.Errorf("[Verification] render email for %s: %v", profile.ID, err)
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		log.Errorf("[Verification] queue email for %s: %v", profile.ID, err)
	}
}

// ownedKey cleans p and requires it to stay inside prefix.
func ownedKey(prefix, p string) (string, error) {
	raw := strings.TrimSpace(p)
	if strings.Contains(raw, "..") {
		return "", fmt.Errorf("%w: path must not contain '..'", ErrInvalidInput)
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+raw), "/")
	if !strings.HasPrefix(cleaned, prefix) || len(cleaned) == len(prefix) {
		return "", fmt.Errorf("%w: path must be inside %s", ErrInvalidInput, prefix)
	}
	if err := validateImageKey(cleaned); err != nil {
		return "", err
	}
	return cleaned, nil
}
