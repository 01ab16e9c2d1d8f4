package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JournalEntry is one side of a balanced pair. A debit row has CreditAccountId nil and a
// credit row has DebitAccountId nil; both rows of a pair share GroupId. Posted amounts are
// never edited: corrections append a reversing pair and stamp ReversedAt on the originals.
type JournalEntry struct {
	ID              int             `gorm:"primary_key" json:"id"`
	JournalType     JournalType     `gorm:"size:20;not null;index" json:"journal_type"`
	DebitAccountId  *int            `gorm:"index" json:"debit_account_id"`
	CreditAccountId *int            `gorm:"index" json:"credit_account_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	SourceType      SourceType      `gorm:"size:20;not null;index:idx_journal_source" json:"source_type"`
	SourceId        int             `gorm:"not null;index:idx_journal_source" json:"source_id"`
	ShopId          *int            `gorm:"index" json:"shop_id"`
	GroupId         string          `gorm:"size:36;not null;index" json:"group_id"`
	Description     string          `gorm:"size:255" json:"description"`
	IsReversal      bool            `gorm:"not null;default:false" json:"is_reversal"`
	ReversesEntryId *int            `json:"reverses_entry_id,omitempty"`
	ReversedAt      *time.Time      `json:"reversed_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// JournalPair describes one balanced posting. DebitShopId/CreditShopId attribute each side to
// a shop; nil means the central inventory or a business-wide account.
type JournalPair struct {
	JournalType   JournalType
	DebitAccount  string
	CreditAccount string
	Amount        decimal.Decimal
	SourceType    SourceType
	SourceId      int
	DebitShopId   *int
	CreditShopId  *int
	Description   string
}

func (e JournalEntry) IsDebit() bool {
	return e.DebitAccountId != nil
}

// PostJournalPair writes the debit and credit rows of pair. A zero amount posts nothing.
func PostJournalPair(ctx context.Context, tx *gorm.DB, pair JournalPair) ([]JournalEntry, error) {
	if pair.Amount.IsZero() {
		return nil, nil
	}
	if pair.Amount.IsNegative() {
		return nil, utils.FieldError("amount", fmt.Sprintf("must not be negative (got %s)", pair.Amount))
	}
	debitId, err := GetAccountIdByName(ctx, tx, pair.DebitAccount)
	if err != nil {
		return nil, err
	}
	creditId, err := GetAccountIdByName(ctx, tx, pair.CreditAccount)
	if err != nil {
		return nil, err
	}

	groupId := uuid.NewString()
	entries := []JournalEntry{
		{
			JournalType:    pair.JournalType,
			DebitAccountId: &debitId,
			Amount:         pair.Amount,
			SourceType:     pair.SourceType,
			SourceId:       pair.SourceId,
			ShopId:         pair.DebitShopId,
			GroupId:        groupId,
			Description:    pair.Description,
		},
		{
			JournalType:     pair.JournalType,
			CreditAccountId: &creditId,
			Amount:          pair.Amount,
			SourceType:      pair.SourceType,
			SourceId:        pair.SourceId,
			ShopId:          pair.CreditShopId,
			GroupId:         groupId,
			Description:     pair.Description,
		},
	}
	if err := tx.WithContext(ctx).Create(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// PostJournalPairs posts each pair in order and returns every row written.
func PostJournalPairs(ctx context.Context, tx *gorm.DB, pairs []JournalPair) ([]JournalEntry, error) {
	var posted []JournalEntry
	for _, pair := range pairs {
		entries, err := PostJournalPair(ctx, tx, pair)
		if err != nil {
			return nil, err
		}
		posted = append(posted, entries...)
	}
	return posted, nil
}

// ReverseJournalEntries appends a mirror pair for every active original posted for the source
// and stamps reversed_at on those originals. Sources with nothing active are a no-op.
// Passing journalTypes limits the reversal to postings of those types.
func ReverseJournalEntries(ctx context.Context, tx *gorm.DB, sourceType SourceType, sourceId int, reason string, journalTypes ...JournalType) ([]JournalEntry, error) {
	db := tx.WithContext(ctx)
	var originals []JournalEntry
	query := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("source_type = ? AND source_id = ? AND is_reversal = ? AND reversed_at IS NULL", sourceType, sourceId, false)
	if len(journalTypes) > 0 {
		query = query.Where("journal_type IN ?", journalTypes)
	}
	if err := query.Order("id ASC").
		Find(&originals).Error; err != nil {
		return nil, err
	}
	if len(originals) == 0 {
		return nil, nil
	}

	groupIds := make(map[string]string)
	reversals := make([]JournalEntry, 0, len(originals))
	ids := make([]int, 0, len(originals))
	for _, original := range originals {
		newGroup, ok := groupIds[original.GroupId]
		if !ok {
			newGroup = uuid.NewString()
			groupIds[original.GroupId] = newGroup
		}
		originalId := original.ID
		reversals = append(reversals, JournalEntry{
			JournalType:     original.JournalType,
			DebitAccountId:  original.CreditAccountId,
			CreditAccountId: original.DebitAccountId,
			Amount:          original.Amount,
			SourceType:      original.SourceType,
			SourceId:        original.SourceId,
			ShopId:          original.ShopId,
			GroupId:         newGroup,
			Description:     reason,
			IsReversal:      true,
			ReversesEntryId: &originalId,
		})
		ids = append(ids, original.ID)
	}
	if err := db.Create(&reversals).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&JournalEntry{}).Where("id IN ?", ids).Update("reversed_at", time.Now()).Error; err != nil {
		return nil, err
	}
	return reversals, nil
}

func ListJournalEntries(ctx context.Context, db *gorm.DB, sourceType SourceType, sourceId int) ([]JournalEntry, error) {
	var entries []JournalEntry
	query := db.WithContext(ctx)
	if sourceType != "" {
		query = query.Where("source_type = ?", sourceType)
	}
	if sourceId > 0 {
		query = query.Where("source_id = ?", sourceId)
	}
	err := query.Order("id ASC").Find(&entries).Error
	return entries, err
}

func SumJournalSides(entries []JournalEntry) (decimal.Decimal, decimal.Decimal) {
	debits, credits := decimal.Zero, decimal.Zero
	for _, e := range entries {
		if e.IsDebit() {
			debits = debits.Add(e.Amount)
		} else {
			credits = credits.Add(e.Amount)
		}
	}
	return debits, credits
}
