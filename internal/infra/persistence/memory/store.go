// Package memory provides an in-memory implementation of the registry
// persistence store used for tests and ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"familycore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Family aliases domain.Family for in-memory persistence operations.
	Family = domain.Family
	// Parent aliases domain.Parent.
	Parent = domain.Parent
	// Child aliases domain.Child.
	Child = domain.Child
	// Address aliases domain.Address.
	Address = domain.Address
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	families  map[string]Family
	parents   map[string]Parent
	children  map[string]Child
	addresses map[string]Address // keyed by family ID
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Families  map[string]Family  `json:"families"`
	Parents   map[string]Parent  `json:"parents"`
	Children  map[string]Child   `json:"children"`
	Addresses map[string]Address `json:"addresses"`
}

func newMemoryState() memoryState {
	return memoryState{
		families:  make(map[string]Family),
		parents:   make(map[string]Parent),
		children:  make(map[string]Child),
		addresses: make(map[string]Address),
	}
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.families {
		out.families[k] = v
	}
	for k, v := range s.parents {
		out.parents[k] = cloneParent(v)
	}
	for k, v := range s.children {
		out.children[k] = cloneChild(v)
	}
	for k, v := range s.addresses {
		out.addresses[k] = v
	}
	return out
}

func cloneParent(p Parent) Parent {
	if p.ImageRef != nil {
		ref := *p.ImageRef
		p.ImageRef = &ref
	}
	return p
}

func cloneChild(c Child) Child {
	if c.ImageRef != nil {
		ref := *c.ImageRef
		c.ImageRef = &ref
	}
	return c
}

func snapshotFromMemoryState(s memoryState) Snapshot {
	snap := Snapshot{
		Families:  make(map[string]Family, len(s.families)),
		Parents:   make(map[string]Parent, len(s.parents)),
		Children:  make(map[string]Child, len(s.children)),
		Addresses: make(map[string]Address, len(s.addresses)),
	}
	for k, v := range s.families {
		snap.Families[k] = v
	}
	for k, v := range s.parents {
		snap.Parents[k] = cloneParent(v)
	}
	for k, v := range s.children {
		snap.Children[k] = cloneChild(v)
	}
	for k, v := range s.addresses {
		snap.Addresses[k] = v
	}
	return snap
}

func memoryStateFromSnapshot(snap Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range snap.Families {
		state.families[k] = v
	}
	for k, v := range snap.Parents {
		state.parents[k] = cloneParent(v)
	}
	for k, v := range snap.Children {
		state.children[k] = cloneChild(v)
	}
	for k, v := range snap.Addresses {
		state.addresses[k] = v
	}
	return state
}

// Store is the canonical in-memory persistence implementation. Durable
// backends wrap it and snapshot its state after each committed transaction.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the time provider; used by tests for deterministic timestamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) transactionView {
	return transactionView{state: state}
}

// ListFamilies returns all families in the snapshot, ordered by ID.
func (v transactionView) ListFamilies() []Family {
	out := make([]Family, 0, len(v.state.families))
	for _, f := range v.state.families {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListParents returns the parents of familyID, or all parents when familyID is empty.
func (v transactionView) ListParents(familyID string) []Parent {
	out := make([]Parent, 0, 2)
	for _, p := range v.state.parents {
		if familyID == "" || p.FamilyID == familyID {
			out = append(out, cloneParent(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListChildren returns the children of familyID, or all children when familyID is empty.
func (v transactionView) ListChildren(familyID string) []Child {
	var out []Child
	for _, c := range v.state.children {
		if familyID == "" || c.FamilyID == familyID {
			out = append(out, cloneChild(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindFamily retrieves a family by ID from the snapshot.
func (v transactionView) FindFamily(id string) (Family, bool) {
	f, ok := v.state.families[id]
	return f, ok
}

// FindParent retrieves a parent by ID from the snapshot.
func (v transactionView) FindParent(id string) (Parent, bool) {
	p, ok := v.state.parents[id]
	if !ok {
		return Parent{}, false
	}
	return cloneParent(p), true
}

// FindChild retrieves a child by ID from the snapshot.
func (v transactionView) FindChild(id string) (Child, bool) {
	c, ok := v.state.children[id]
	if !ok {
		return Child{}, false
	}
	return cloneChild(c), true
}

// FindAddress retrieves the address of a family from the snapshot.
func (v transactionView) FindAddress(familyID string) (Address, bool) {
	a, ok := v.state.addresses[familyID]
	return a, ok
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindFamily exposes family lookup within the transaction scope.
func (tx *transaction) FindFamily(id string) (Family, bool) {
	f, ok := tx.state.families[id]
	return f, ok
}

// FindParent exposes parent lookup within the transaction scope.
func (tx *transaction) FindParent(id string) (Parent, bool) {
	p, ok := tx.state.parents[id]
	if !ok {
		return Parent{}, false
	}
	return cloneParent(p), true
}

// FindChild exposes child lookup within the transaction scope.
func (tx *transaction) FindChild(id string) (Child, bool) {
	c, ok := tx.state.children[id]
	if !ok {
		return Child{}, false
	}
	return cloneChild(c), true
}

// CreateFamily stores a new family within the transaction. The ID is the
// caller-supplied registration number; the store never generates one.
func (tx *transaction) CreateFamily(f Family) (Family, error) {
	if f.ID == "" {
		return Family{}, domain.ValidationError{Entity: domain.EntityFamily, Reason: "registration number required"}
	}
	if _, exists := tx.state.families[f.ID]; exists {
		return Family{}, domain.ConflictError{Entity: domain.EntityFamily, ID: f.ID}
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.families[f.ID] = f
	tx.recordChange(Change{Entity: domain.EntityFamily, Action: domain.ActionCreate, After: f})
	return f, nil
}

// DeleteFamily removes a family and cascades to its parents, children, and
// address so that no row referencing the family survives the commit.
func (tx *transaction) DeleteFamily(id string) error {
	current, ok := tx.state.families[id]
	if !ok {
		return domain.ValidationError{Entity: domain.EntityFamily, ID: id, Reason: "not found"}
	}
	for pid, p := range tx.state.parents {
		if p.FamilyID == id {
			delete(tx.state.parents, pid)
			tx.recordChange(Change{Entity: domain.EntityParent, Action: domain.ActionDelete, Before: cloneParent(p)})
		}
	}
	for cid, c := range tx.state.children {
		if c.FamilyID == id {
			delete(tx.state.children, cid)
			tx.recordChange(Change{Entity: domain.EntityChild, Action: domain.ActionDelete, Before: cloneChild(c)})
		}
	}
	if a, ok := tx.state.addresses[id]; ok {
		delete(tx.state.addresses, id)
		tx.recordChange(Change{Entity: domain.EntityAddress, Action: domain.ActionDelete, Before: a})
	}
	delete(tx.state.families, id)
	tx.recordChange(Change{Entity: domain.EntityFamily, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateParent stores a new parent. The referenced family must exist.
func (tx *transaction) CreateParent(p Parent) (Parent, error) {
	if p.ID == "" {
		return Parent{}, domain.ValidationError{Entity: domain.EntityParent, Reason: "identity number required"}
	}
	if _, exists := tx.state.parents[p.ID]; exists {
		return Parent{}, domain.ConflictError{Entity: domain.EntityParent, ID: p.ID}
	}
	if _, ok := tx.state.families[p.FamilyID]; !ok {
		return Parent{}, domain.ConflictError{Entity: domain.EntityFamily, ID: p.FamilyID}
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.parents[p.ID] = cloneParent(p)
	tx.recordChange(Change{Entity: domain.EntityParent, Action: domain.ActionCreate, After: cloneParent(p)})
	return cloneParent(p), nil
}

// UpdateParent mutates a parent using the provided mutator function.
func (tx *transaction) UpdateParent(id string, mutator func(*Parent) error) (Parent, error) {
	current, ok := tx.state.parents[id]
	if !ok {
		return Parent{}, domain.ValidationError{Entity: domain.EntityParent, ID: id, Reason: "not found"}
	}
	before := cloneParent(current)
	if err := mutator(&current); err != nil {
		return Parent{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.parents[id] = cloneParent(current)
	tx.recordChange(Change{Entity: domain.EntityParent, Action: domain.ActionUpdate, Before: before, After: cloneParent(current)})
	return cloneParent(current), nil
}

// DeleteParent removes a parent from the transaction state.
func (tx *transaction) DeleteParent(id string) error {
	current, ok := tx.state.parents[id]
	if !ok {
		return domain.ValidationError{Entity: domain.EntityParent, ID: id, Reason: "not found"}
	}
	delete(tx.state.parents, id)
	tx.recordChange(Change{Entity: domain.EntityParent, Action: domain.ActionDelete, Before: cloneParent(current)})
	return nil
}

// CreateChild stores a new child. The ID must be globally unique and the
// referenced family must exist.
func (tx *transaction) CreateChild(c Child) (Child, error) {
	if c.ID == "" {
		return Child{}, domain.ValidationError{Entity: domain.EntityChild, Reason: "identity number required"}
	}
	if _, exists := tx.state.children[c.ID]; exists {
		return Child{}, domain.ConflictError{Entity: domain.EntityChild, ID: c.ID}
	}
	if _, ok := tx.state.families[c.FamilyID]; !ok {
		return Child{}, domain.ConflictError{Entity: domain.EntityFamily, ID: c.FamilyID}
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.children[c.ID] = cloneChild(c)
	tx.recordChange(Change{Entity: domain.EntityChild, Action: domain.ActionCreate, After: cloneChild(c)})
	return cloneChild(c), nil
}

// UpdateChild mutates a child using the provided mutator function.
func (tx *transaction) UpdateChild(id string, mutator func(*Child) error) (Child, error) {
	current, ok := tx.state.children[id]
	if !ok {
		return Child{}, domain.ValidationError{Entity: domain.EntityChild, ID: id, Reason: "not found"}
	}
	before := cloneChild(current)
	if err := mutator(&current); err != nil {
		return Child{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.children[id] = cloneChild(current)
	tx.recordChange(Change{Entity: domain.EntityChild, Action: domain.ActionUpdate, Before: before, After: cloneChild(current)})
	return cloneChild(current), nil
}

// DeleteChild removes a child from the transaction state.
func (tx *transaction) DeleteChild(id string) error {
	current, ok := tx.state.children[id]
	if !ok {
		return domain.ValidationError{Entity: domain.EntityChild, ID: id, Reason: "not found"}
	}
	delete(tx.state.children, id)
	tx.recordChange(Change{Entity: domain.EntityChild, Action: domain.ActionDelete, Before: cloneChild(current)})
	return nil
}

// CreateAddress stores the single address of a family.
func (tx *transaction) CreateAddress(a Address) (Address, error) {
	if a.FamilyID == "" {
		return Address{}, domain.ValidationError{Entity: domain.EntityAddress, Reason: "family ID required"}
	}
	if _, exists := tx.state.addresses[a.FamilyID]; exists {
		return Address{}, domain.ConflictError{Entity: domain.EntityAddress, ID: a.FamilyID}
	}
	if _, ok := tx.state.families[a.FamilyID]; !ok {
		return Address{}, domain.ConflictError{Entity: domain.EntityFamily, ID: a.FamilyID}
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.addresses[a.FamilyID] = a
	tx.recordChange(Change{Entity: domain.EntityAddress, Action: domain.ActionCreate, After: a})
	return a, nil
}

// UpdateAddress mutates the address of a family.
func (tx *transaction) UpdateAddress(familyID string, mutator func(*Address) error) (Address, error) {
	current, ok := tx.state.addresses[familyID]
	if !ok {
		return Address{}, domain.ValidationError{Entity: domain.EntityAddress, ID: familyID, Reason: "not found"}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Address{}, err
	}
	current.FamilyID = familyID
	current.UpdatedAt = tx.now
	tx.state.addresses[familyID] = current
	tx.recordChange(Change{Entity: domain.EntityAddress, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteAddress removes the address of a family.
func (tx *transaction) DeleteAddress(familyID string) error {
	current, ok := tx.state.addresses[familyID]
	if !ok {
		return domain.ValidationError{Entity: domain.EntityAddress, ID: familyID, Reason: "not found"}
	}
	delete(tx.state.addresses, familyID)
	tx.recordChange(Change{Entity: domain.EntityAddress, Action: domain.ActionDelete, Before: current})
	return nil
}

// GetFamily retrieves a family outside a transaction.
func (s *Store) GetFamily(id string) (Family, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.state.families[id]
	return f, ok
}

// ListFamilies returns all families ordered by ID.
func (s *Store) ListFamilies() []Family {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListFamilies()
}

// GetParent retrieves a parent outside a transaction.
func (s *Store) GetParent(id string) (Parent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.parents[id]
	if !ok {
		return Parent{}, false
	}
	return cloneParent(p), true
}

// ListParents returns the parents of familyID (all parents when empty).
func (s *Store) ListParents(familyID string) []Parent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListParents(familyID)
}

// GetChild retrieves a child outside a transaction.
func (s *Store) GetChild(id string) (Child, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.children[id]
	if !ok {
		return Child{}, false
	}
	return cloneChild(c), true
}

// ListChildren returns the children of familyID (all children when empty).
func (s *Store) ListChildren(familyID string) []Child {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListChildren(familyID)
}

// GetAddress retrieves the address of a family outside a transaction.
func (s *Store) GetAddress(familyID string) (Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.addresses[familyID]
	return a, ok
}
