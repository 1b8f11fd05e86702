package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GameStatus string

const (
	GameStatusDraft     GameStatus = "DRAFT"
	GameStatusActive    GameStatus = "ACTIVE"
	GameStatusClosed    GameStatus = "CLOSED"
	GameStatusSettled   GameStatus = "SETTLED"
	GameStatusCancelled GameStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed.
func (s GameStatus) IsTerminal() bool {
	return s == GameStatusSettled || s == GameStatusCancelled
}

type GameFormat string

const (
	GameFormatBinary      GameFormat = "BINARY"
	GameFormatWinDrawLose GameFormat = "WIN_DRAW_LOSE"
	GameFormatRanking     GameFormat = "RANKING"
)

type SettlementType string

const (
	SettlementTypeWinnerTakeAll      SettlementType = "WINNER_TAKE_ALL"
	SettlementTypeProportional       SettlementType = "PROPORTIONAL"
	SettlementTypeConfidenceWeighted SettlementType = "CONFIDENCE_WEIGHTED"
	SettlementTypeHybrid             SettlementType = "HYBRID"
)

// ValidSettlementType reports whether t is a known settlement policy.
func ValidSettlementType(t SettlementType) bool {
	switch t {
	case SettlementTypeWinnerTakeAll, SettlementTypeProportional,
		SettlementTypeConfidenceWeighted, SettlementTypeHybrid:
		return true
	}
	return false
}

// PredictionGame represents a single prediction market. Created DRAFT;
// mutated only through lifecycle transitions.
type PredictionGame struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	Title             string          `gorm:"size:255;not null" json:"title"`
	Category          string          `gorm:"size:100;not null;index" json:"category"`
	Subcategory       string          `gorm:"size:100;index" json:"subcategory"`
	League            string          `gorm:"size:100" json:"league"`
	Format            GameFormat      `gorm:"size:50;not null;default:BINARY" json:"format"`
	Status            GameStatus      `gorm:"size:50;not null;default:DRAFT;index" json:"status"`
	Options           string          `gorm:"type:text;not null" json:"options"` // JSON array like ["HOME","AWAY"]
	RegistrationStart time.Time       `gorm:"not null" json:"registration_start"`
	RegistrationEnd   time.Time       `gorm:"not null;index" json:"registration_end"`
	SettledAt         *time.Time      `json:"settled_at"`
	MinStake          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:1" json:"min_stake"`
	MaxStake          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:1000" json:"max_stake"`
	SettlementType    SettlementType  `gorm:"size:50;not null;default:WINNER_TAKE_ALL" json:"settlement_type"`
	BonusPool         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"bonus_pool"`
	WinningOption     *string         `gorm:"size:255" json:"winning_option"`
	WinningOrder      *string         `gorm:"type:text" json:"winning_order"` // JSON array, RANKING only
	CreatedAt         time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PredictionGame) TableName() string {
	return "prediction_games"
}

// ParseOptions parses the options JSON string into a slice
func (g *PredictionGame) ParseOptions() []string {
	var options []string
	if g.Options != "" {
		json.Unmarshal([]byte(g.Options), &options)
	}
	return options
}

// HasOption reports whether choice is one of the game's options.
func (g *PredictionGame) HasOption(choice string) bool {
	for _, opt := range g.ParseOptions() {
		if opt == choice {
			return true
		}
	}
	return false
}

// Wager is a user's staked choice on a game outcome. Odds and confidence
// are immutable once set; IsActive flips false exactly once, at settlement.
type Wager struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	GameID          uint            `gorm:"not null;index" json:"game_id"`
	AccountID       uint            `gorm:"not null;index" json:"account_id"`
	Stake           decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"stake"`
	Choice          string          `gorm:"size:255;not null" json:"choice"`
	RankingData     *string         `gorm:"type:text" json:"ranking_data"` // JSON array, RANKING only
	OddsAtPlacement decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"odds_at_placement"`
	Confidence      int16           `gorm:"not null;default:1" json:"confidence"` // 1..5
	IsActive        bool            `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt       time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Wager) TableName() string {
	return "wagers"
}

// ParseRanking parses the wager's predicted ranking into a slice
func (w *Wager) ParseRanking() []string {
	var ranking []string
	if w.RankingData != nil && *w.RankingData != "" {
		json.Unmarshal([]byte(*w.RankingData), &ranking)
	}
	return ranking
}

// CreateGameRequest represents a request to create a draft game
type CreateGameRequest struct {
	Title             string   `json:"title" binding:"required"`
	Category          string   `json:"category" binding:"required"`
	Subcategory       string   `json:"subcategory"`
	League            string   `json:"league"`
	Format            string   `json:"format"`
	Options           []string `json:"options" binding:"required,min=2"`
	RegistrationStart string   `json:"registration_start" binding:"required"` // RFC3339
	RegistrationEnd   string   `json:"registration_end" binding:"required"`   // RFC3339
	MinStake          float64  `json:"min_stake"`
	MaxStake          float64  `json:"max_stake"`
	SettlementType    string   `json:"settlement_type"`
	BonusPool         float64  `json:"bonus_pool"`
}

// PlaceWagerRequest represents a request to place a wager on a game
type PlaceWagerRequest struct {
	GameID     uint     `json:"game_id" binding:"required"`
	Stake      float64  `json:"stake" binding:"required,gt=0"`
	Choice     string   `json:"choice"`
	Ranking    []string `json:"ranking"`
	Confidence int16    `json:"confidence"`
}

// GameStateResponse represents game state in API responses
type GameStateResponse struct {
	ID              uint       `json:"id"`
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	Subcategory     string     `json:"subcategory"`
	Status          string     `json:"status"`
	Options         []string   `json:"options"`
	RegistrationEnd time.Time  `json:"registration_end"`
	SettlementType  string     `json:"settlement_type"`
	WinningOption   *string    `json:"winning_option"`
	SettledAt       *time.Time `json:"settled_at"`
}
