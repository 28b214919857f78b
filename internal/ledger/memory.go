package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/models"
)

// Memory is an in-process Ledger. Failures can be injected per item.
type Memory struct {
	mu          sync.Mutex
	events      []models.CreationEvent
	details     map[uint64]models.ItemDetail
	detailErrs  map[uint64]error
	eventsErr   error
	createErr   error
	detailReads int
	created     []models.Submission
	nextBlock   uint64
}

// NewMemory returns an empty in-process ledger.
func NewMemory() *Memory {
	return &Memory{
		details:    make(map[uint64]models.ItemDetail),
		detailErrs: make(map[uint64]error),
		nextBlock:  1,
	}
}

// Add appends a creation event and stores detail as the item's current state.
func (m *Memory) Add(ev models.CreationEvent, detail models.ItemDetail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.BlockNumber == 0 {
		ev.BlockNumber = m.nextBlock
	}
	m.nextBlock = max(m.nextBlock, ev.BlockNumber) + 1
	m.events = append(m.events, ev)
	m.details[ev.ID] = detail
}

// FailDetail makes every ItemDetail read of id return err.
func (m *Memory) FailDetail(id uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detailErrs[id] = err
}

// FailEvents makes CreationEvents return err.
func (m *Memory) FailEvents(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsErr = err
}

// FailCreate makes CreateItem return err.
func (m *Memory) FailCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// DetailReads returns how many ItemDetail calls were made.
func (m *Memory) DetailReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detailReads
}

// Created returns the submissions accepted by CreateItem.
func (m *Memory) Created() []models.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Submission(nil), m.created...)
}

// CreationEvents implements Ledger.
func (m *Memory) CreationEvents(ctx context.Context, fromBlock uint64) ([]models.CreationEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventsErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedger, m.eventsErr)
	}
	var out []models.CreationEvent
	for _, ev := range m.events {
		if ev.BlockNumber >= fromBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ItemDetail implements Ledger.
func (m *Memory) ItemDetail(ctx context.Context, id uint64) (models.ItemDetail, error) {
	if err := ctx.Err(); err != nil {
		return models.ItemDetail{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detailReads++
	if err := m.detailErrs[id]; err != nil {
		return models.ItemDetail{}, fmt.Errorf("%w: %s(%d): %w", ErrLedger, methodGetOneSample, id, err)
	}
	detail, ok := m.details[id]
	if !ok {
		return models.ItemDetail{}, fmt.Errorf("%w: %s(%d): no such item", ErrLedger, methodGetOneSample, id)
	}
	return detail, nil
}

// CreateItem implements Ledger. The item becomes visible to the next
// CreationEvents call immediately.
func (m *Memory) CreateItem(ctx context.Context, sub models.Submission, cid string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	price, err := helpers.ParseEth(sub.PriceEth)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrLedger, methodCreateSample, m.createErr)
	}

	id := uint64(len(m.events) + 1)
	txHash := fmt.Sprintf("0x%064x", m.nextBlock)
	ev := models.CreationEvent{
		ID:             id,
		Artist:         sub.Artist,
		Title:          sub.Title,
		Category:       sub.Category,
		Description:    sub.Description,
		NumberOfCopies: sub.NumberOfCopies,
		Price:          price,
		CID:            cid,
		BlockNumber:    m.nextBlock,
		TxHash:         txHash,
	}
	m.nextBlock++
	m.events = append(m.events, ev)
	m.details[id] = models.ItemDetail{
		Title:          sub.Title,
		Artist:         sub.Artist,
		Category:       sub.Category,
		Description:    sub.Description,
		NumberOfCopies: sub.NumberOfCopies,
		Price:          new(big.Int).Set(price),
		CID:            cid,
	}
	m.created = append(m.created, sub)
	return txHash, nil
}
