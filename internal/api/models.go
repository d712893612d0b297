package api

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// User is the identity returned by the auth endpoints.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt Timestamp `json:"created_at,omitzero"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// Condition is the wear grade of a listing.
type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like_new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionWorn    Condition = "worn"
)

// Owner is the abbreviated user embedded in listings and propositions.
type Owner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Listing is a sneaker offered on the marketplace.
type Listing struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Size        string    `json:"size"`
	Condition   Condition `json:"condition"`
	Price       float64   `json:"price"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	OwnerID     string    `json:"owner_id"`
	Owner       *Owner    `json:"owner,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// CreateListingRequest is the body of POST /api/sneakers.
type CreateListingRequest struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Brand       string    `json:"brand" validate:"required,max=100"`
	Size        string    `json:"size" validate:"required,max=20"`
	Condition   Condition `json:"condition" validate:"required,oneof=new like_new good fair worn"`
	Price       float64   `json:"price" validate:"gte=0"`
	Description string    `json:"description,omitempty" validate:"max=2000"`
	ImageURL    string    `json:"image_url,omitempty" validate:"omitempty,url"`
}

// Normalize returns a copy with free-text fields trimmed and NFC-normalized.
func (r CreateListingRequest) Normalize() CreateListingRequest {
	r.Name = normalizeText(r.Name)
	r.Brand = normalizeText(r.Brand)
	r.Size = strings.TrimSpace(r.Size)
	r.Description = normalizeText(r.Description)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	return r
}

// UpdateListingRequest is the body of PUT /api/sneakers/{id}.
// Nil fields are left unchanged by the server.
type UpdateListingRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Brand       *string    `json:"brand,omitempty" validate:"omitempty,min=1,max=100"`
	Size        *string    `json:"size,omitempty" validate:"omitempty,min=1,max=20"`
	Condition   *Condition `json:"condition,omitempty" validate:"omitempty,oneof=new like_new good fair worn"`
	Price       *float64   `json:"price,omitempty" validate:"omitempty,gte=0"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	ImageURL    *string    `json:"image_url,omitempty" validate:"omitempty,url"`
}

// Normalize returns a copy with set free-text fields NFC-normalized.
func (r UpdateListingRequest) Normalize() UpdateListingRequest {
	for _, p := range []**string{&r.Name, &r.Brand, &r.Description} {
		if *p != nil {
			s := normalizeText(**p)
			*p = &s
		}
	}
	return r
}

// IsEmpty reports whether no field is set.
func (r UpdateListingRequest) IsEmpty() bool {
	return r.Name == nil && r.Brand == nil && r.Size == nil && r.Condition == nil &&
		r.Price == nil && r.Description == nil && r.ImageURL == nil
}

// OfferType is the kind of deal a proposition offers.
type OfferType string

const (
	OfferBuy   OfferType = "buy"
	OfferTrade OfferType = "trade"
	OfferSwap  OfferType = "swap"
)

// PropositionStatus is owned by the server; clients never set it.
type PropositionStatus string

const (
	StatusPending   PropositionStatus = "pending"
	StatusAccepted  PropositionStatus = "accepted"
	StatusRejected  PropositionStatus = "rejected"
	StatusCancelled PropositionStatus = "cancelled"
)

// ListingSummary is the abbreviated listing embedded in propositions.
type ListingSummary struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Brand string  `json:"brand"`
	Size  string  `json:"size"`
	Price float64 `json:"price,omitempty"`
}

// Proposition is an offer made on someone else's listing.
type Proposition struct {
	ID             string            `json:"id"`
	SneakerID      string            `json:"sneaker_id"`
	Sneaker        *ListingSummary   `json:"sneaker,omitempty"`
	ProposerID     string            `json:"proposer_id"`
	Proposer       *Owner            `json:"proposer,omitempty"`
	OfferType      OfferType         `json:"offer_type"`
	OfferPrice     *float64          `json:"offer_price,omitempty"`
	OfferSneakerID string            `json:"offer_sneaker_id,omitempty"`
	OfferSneaker   *ListingSummary   `json:"offer_sneaker,omitempty"`
	Status         PropositionStatus `json:"status"`
	Message        string            `json:"message,omitempty"`
	CreatedAt      Timestamp         `json:"created_at"`
	UpdatedAt      Timestamp         `json:"updated_at"`
}

// CreatePropositionRequest is the body of POST /api/propositions.
// Buy offers need OfferPrice; trade and swap offers need OfferSneakerID.
type CreatePropositionRequest struct {
	SneakerID      string    `json:"sneaker_id" validate:"required"`
	OfferType      OfferType `json:"offer_type" validate:"required,oneof=buy trade swap"`
	OfferPrice     *float64  `json:"offer_price,omitempty" validate:"omitempty,gte=0"`
	OfferSneakerID string    `json:"offer_sneaker_id,omitempty"`
	Message        string    `json:"message,omitempty" validate:"max=1000"`
}

// Normalize returns a copy with the message NFC-normalized.
func (r CreatePropositionRequest) Normalize() CreatePropositionRequest {
	r.SneakerID = strings.TrimSpace(r.SneakerID)
	r.OfferSneakerID = strings.TrimSpace(r.OfferSneakerID)
	r.Message = normalizeText(r.Message)
	return r
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername trims and NFC-normalizes a username so visually
// identical names encode identically.
func NormalizeUsername(username string) string {
	return normalizeText(username)
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
