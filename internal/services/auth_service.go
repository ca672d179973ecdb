package services

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"freelance-market/internal/models"
	"freelance-market/internal/repository"
	"freelance-market/internal/utils"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"gorm.io/gorm"
)

// DefaultChallengeTTL is how long an issued login challenge can be signed
const DefaultChallengeTTL = 5 * time.Minute

// AuthService handles key-based login and profile lookup
type AuthService struct {
	repo          *repository.Repository
	initialCredit int64
	challengeTTL  time.Duration
}

// NewAuthService creates a new AuthService. New profiles open with initialCredit.
func NewAuthService(repo *repository.Repository, initialCredit int64) *AuthService {
	return &AuthService{repo: repo, initialCredit: initialCredit, challengeTTL: DefaultChallengeTTL}
}

// SetChallengeTTL overrides DefaultChallengeTTL; non-positive values are ignored
func (s *AuthService) SetChallengeTTL(ttl time.Duration) {
	if ttl > 0 {
		s.challengeTTL = ttl
	}
}

// ChallengeMessage is the exact text a key holder signs for challenge
func ChallengeMessage(challenge *models.LoginChallenge) string {
	return fmt.Sprintf("Sign in to the freelance marketplace\nkey: %s\nnonce: %s\nexpires: %s",
		challenge.PublicKey, challenge.Nonce, challenge.ExpiresAt.UTC().Format(time.RFC3339))
}

// VerifySignature checks an ed25519 signature of message. The key is base58; the
// signature may be base58 or hex.
func VerifySignature(publicKey, signature, message string) error {
	pubKey, err := decodePublicKey(publicKey)
	if err != nil {
		return err
	}

	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		sig, err = hex.DecodeString(signature)
		if err != nil {
			return invalid("signature", "must be base58 or hex")
		}
	}

	if !ed25519.Verify(pubKey, []byte(message), sig) {
		return ErrInvalidSignature
	}
	return nil
}

func decodePublicKey(publicKey string) (ed25519.PublicKey, error) {
	pubKey, err := base58.Decode(publicKey)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return nil, invalid("public_key", "must be a base58 ed25519 key")
	}
	return pubKey, nil
}

// Challenge issues a single-use nonce for publicKey. The returned message is what the
// key holder must sign and send back to Login.
func (s *AuthService) Challenge(ctx context.Context, publicKey string) (*models.LoginChallenge, string, error) {
	if _, err := decodePublicKey(publicKey); err != nil {
		return nil, "", err
	}

	challenge := &models.LoginChallenge{
		PublicKey: publicKey,
		Nonce:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		ExpiresAt: time.Now().UTC().Add(s.challengeTTL).Truncate(time.Second),
	}
	if err := s.repo.DB().WithContext(ctx).Create(challenge).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create login challenge: %w", err)
	}
	return challenge, ChallengeMessage(challenge), nil
}

// PurgeChallenges deletes used and expired challenges
func (s *AuthService) PurgeChallenges(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredLoginChallenges(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge login challenges: %w", err)
	}
	return n, nil
}

// Login verifies the signature over an issued challenge, consumes the challenge and
// returns the key's profile, creating it on first login. The second return value
// reports whether the profile was created.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.Profile, bool, error) {
	challenge, err := s.repo.GetLoginChallenge(ctx, req.Nonce, req.PublicKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrChallengeInvalid
		}
		return nil, false, fmt.Errorf("database error: %w", err)
	}
	if err := VerifySignature(req.PublicKey, req.Signature, ChallengeMessage(challenge)); err != nil {
		return nil, false, err
	}

	consumed, err := s.repo.ConsumeLoginChallenge(ctx, challenge.ID, time.Now())
	if err != nil {
		return nil, false, fmt.Errorf("failed to consume login challenge: %w", err)
	}
	if !consumed {
		return nil, false, ErrChallengeInvalid
	}

	profile, err := s.repo.GetProfileByPublicKey(ctx, req.PublicKey)
	if err == nil {
		log.Printf("Profile logged in: key=%s (ID: %s)", req.PublicKey, profile.ID)
		return profile, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("database error: %w", err)
	}

	if !req.Role.Valid() {
		return nil, false, invalid("role", "must be client or freelancer")
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName, err = utils.GenerateDisplayName()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate display name: %w", err)
		}
	}

	profile = &models.Profile{
		PublicKey:     req.PublicKey,
		DisplayName:   displayName,
		Role:          req.Role,
		Credit:        s.initialCredit,
		InitialCredit: s.initialCredit,
	}
	if err := s.repo.DB().WithContext(ctx).Create(profile).Error; err != nil {
		// Two first logins can race on the unique key; the loser reads the winner's row.
		if existing, lookupErr := s.repo.GetProfileByPublicKey(ctx, req.PublicKey); lookupErr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}

	log.Printf("New profile created: key=%s role=%s (ID: %s)", req.PublicKey, profile.Role, profile.ID)
	return profile, true, nil
}

// GetProfile retrieves a profile by ID
func (s *AuthService) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	profile, err := s.repo.GetProfileByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrProfileNotFound)
	}
	return profile, nil
}
