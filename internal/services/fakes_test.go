package services

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inscribe-bot/backend/internal/chain"
	"github.com/inscribe-bot/backend/internal/events"
	"github.com/inscribe-bot/backend/internal/models"
	"github.com/shopspring/decimal"
)

// journal records cross-fake ordering of side effects.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *journal) index(prefix string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, e := range j.entries {
		if strings.HasPrefix(e, prefix) {
			return i
		}
	}
	return -1
}

// --- users ---

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[int64]*models.User)}
}

func (f *fakeUsers) UpsertByTelegramID(ctx context.Context, telegramID int64, username *string, defaultChain string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[telegramID]
	if !ok {
		u = &models.User{
			ID:             uuid.New(),
			TelegramUserID: telegramID,
			State:          models.StateIdle,
			ActiveChain:    defaultChain,
			FeePreference:  models.FeeAuto,
			CreatedAt:      time.Now(),
		}
		f.users[telegramID] = u
	}
	if username != nil {
		u.Username = username
	}
	u.LastActiveAt = time.Now()
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[telegramID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) state(telegramID int64) models.WorkflowState {
	u, err := f.GetByTelegramID(context.Background(), telegramID)
	if err != nil {
		return ""
	}
	return u.State
}

func (f *fakeUsers) SetState(ctx context.Context, telegramID int64, state models.WorkflowState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[telegramID]
	if !ok {
		return models.ErrNotFound
	}
	u.State = state
	return nil
}

func (f *fakeUsers) CompareAndSetState(ctx context.Context, telegramID int64, from, to models.WorkflowState) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[telegramID]
	if !ok || u.State != from {
		return false, nil
	}
	u.State = to
	return true, nil
}

func (f *fakeUsers) SetActiveChain(ctx context.Context, telegramID int64, chainName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[telegramID].ActiveChain = chainName
	return nil
}

func (f *fakeUsers) SetFeePreference(ctx context.Context, telegramID int64, pref models.FeePreference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[telegramID].FeePreference = pref
	return nil
}

func (f *fakeUsers) UpdateLastActive(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeUsers) ListStale(ctx context.Context, before time.Time, limit int) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if u.State != models.StateIdle && u.State != models.StateConfirming && u.LastActiveAt.Before(before) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActiveAt.Before(out[j].LastActiveAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- wallets ---

type fakeWallets struct {
	mu      sync.Mutex
	wallets []models.Wallet
	touched int
}

func (f *fakeWallets) GetByUserAndChain(ctx context.Context, userID uuid.UUID, chainName string) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.wallets {
		if w.UserID == userID && w.Chain == chainName {
			cp := w
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeWallets) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Wallet
	for _, w := range f.wallets {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWallets) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched++
	return nil
}

// --- processes ---

type fakeProcesses struct {
	mu    sync.Mutex
	recs  map[int64]models.Process
	saves int
}

func newFakeProcesses() *fakeProcesses {
	return &fakeProcesses{recs: make(map[int64]models.Process)}
}

func (f *fakeProcesses) Load(ctx context.Context, telegramID int64) (*models.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.recs[telegramID]
	if !ok {
		return &models.Process{TelegramUserID: telegramID}, nil
	}
	return &p, nil
}

func (f *fakeProcesses) Save(ctx context.Context, p *models.Process) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[p.TelegramUserID] = *p
	f.saves++
	return nil
}

func (f *fakeProcesses) Reset(ctx context.Context, telegramID int64) error {
	return f.Save(ctx, &models.Process{TelegramUserID: telegramID})
}

func (f *fakeProcesses) get(telegramID int64) (models.Process, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.recs[telegramID]
	return p, ok
}

// --- transactions / audit ---

type fakeTxs struct {
	mu  sync.Mutex
	txs []models.Transaction
	j   *journal
	err error
}

func (f *fakeTxs) Create(ctx context.Context, t *models.Transaction) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	f.txs = append(f.txs, *t)
	f.j.add("tx:" + t.Hash)
	return nil
}

func (f *fakeTxs) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transaction
	for _, t := range f.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
	err     error
}

func (f *fakeAudit) Log(ctx context.Context, entry models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// --- transport ---

type sentMessage struct {
	TelegramUserID int64
	ID             int64
	Msg            OutMessage
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	deleted []int64
	nextID  int64
	j       *journal
}

func (f *fakeMessenger) Send(ctx context.Context, telegramUserID int64, msg OutMessage) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sentMessage{TelegramUserID: telegramUserID, ID: f.nextID, Msg: msg})
	f.j.add("msg:" + msg.Text)
	return f.nextID, nil
}

func (f *fakeMessenger) Delete(ctx context.Context, telegramUserID int64, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) last() OutMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return OutMessage{}
	}
	return f.sent[len(f.sent)-1].Msg
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Msg.Text)
	}
	return out
}

type fakeCustody struct {
	err error
}

func (f *fakeCustody) DecryptKey(ctx context.Context, encrypted string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("plain:" + encrypted), nil
}

type fakeLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func (f *fakeLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, stream string, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakePrices struct {
	price decimal.Decimal
	err   error
}

func (f *fakePrices) GetReferencePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.price, f.err
}

// --- chains ---

type fakeAdapter struct {
	mu sync.Mutex

	name     string
	symbol   string
	decimals int32

	balance    *big.Int
	feeRate    *big.Int
	balanceErr error
	feeErr     error
	sendErr    error

	// onBroadcast runs before the send is recorded, outside the adapter lock
	onBroadcast func()

	broadcasts []chain.BroadcastRequest
}

func newFakeAdapter(name, symbol string, decimals int32) *fakeAdapter {
	return &fakeAdapter{
		name:     name,
		symbol:   symbol,
		decimals: decimals,
		balance:  new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil),
		feeRate:  big.NewInt(100),
	}
}

func (a *fakeAdapter) Name() string    { return a.name }
func (a *fakeAdapter) Symbol() string  { return a.symbol }
func (a *fakeAdapter) Decimals() int32 { return a.decimals }

func (a *fakeAdapter) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balanceErr != nil {
		return nil, a.balanceErr
	}
	return new(big.Int).Set(a.balance), nil
}

func (a *fakeAdapter) GetFeeRate(ctx context.Context) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.feeErr != nil {
		return nil, a.feeErr
	}
	return new(big.Int).Set(a.feeRate), nil
}

func (a *fakeAdapter) setFeeRate(v int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feeRate = big.NewInt(v)
}

// cost = rate * (1000 + size)
func (a *fakeAdapter) EstimateCost(payloadSize int, feeRate *big.Int, priority models.FeePreference) *big.Int {
	return new(big.Int).Mul(feeRate, big.NewInt(int64(1000+payloadSize)))
}

func (a *fakeAdapter) ValidateAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && len(address) == 42
}

func (a *fakeAdapter) BuildAndBroadcast(ctx context.Context, req chain.BroadcastRequest) (*chain.BroadcastResult, error) {
	a.mu.Lock()
	hook := a.onBroadcast
	a.mu.Unlock()
	if hook != nil {
		hook()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return nil, a.sendErr
	}
	req.PrivateKey = append([]byte(nil), req.PrivateKey...)
	a.broadcasts = append(a.broadcasts, req)
	return &chain.BroadcastResult{Hash: fmt.Sprintf("0xhash%d", len(a.broadcasts)), Timestamp: time.Now()}, nil
}

func (a *fakeAdapter) ExplorerURL(hash string) string {
	return "https://explorer.test/tx/" + hash
}

func (a *fakeAdapter) sent() []chain.BroadcastRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]chain.BroadcastRequest(nil), a.broadcasts...)
}

// fakeActivatingAdapter adds the uninitialized-account capability.
type fakeActivatingAdapter struct {
	*fakeAdapter
	activated bool
}

func (a *fakeActivatingAdapter) ValidateAddress(address string) bool {
	return strings.HasPrefix(address, "EQ") && len(address) == 48
}

func (a *fakeActivatingAdapter) IsAddressActivated(ctx context.Context, address string) (bool, error) {
	return a.activated, nil
}
