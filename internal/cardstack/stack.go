package cardstack

import (
	"fmt"
	"sort"
	"sync"
)

const (
	// DefaultThrowScale is the scale a card shrinks to while leaving the stack.
	DefaultThrowScale = 0.8
	// DefaultRestJitter bounds the random rest rotation of a recycled card, in degrees.
	DefaultRestJitter = 3.0
	// initialTilt is the per-index rotation bias applied at initialization, in degrees.
	initialTilt = 1.5
)

// Stack owns the cards and every mutation of their transforms and ranks.
// All methods are safe for concurrent use; readers never see a partially
// applied reorder.
type Stack struct {
	mu          sync.RWMutex
	cards       []Card
	initialized bool

	rng        RNG
	throwScale float64
	restJitter float64
}

// Option configures a Stack.
type Option func(*Stack)

// WithRNG sets the random source for rest rotations.
func WithRNG(rng RNG) Option {
	return func(s *Stack) { s.rng = rng }
}

// WithThrowScale sets the scale of a card mid-throw.
func WithThrowScale(scale float64) Option {
	return func(s *Stack) { s.throwScale = scale }
}

// WithRestJitter sets the bound of the random rest rotation after a recycle.
func WithRestJitter(deg float64) Option {
	return func(s *Stack) { s.restJitter = deg }
}

// New returns an uninitialized stack.
func New(opts ...Option) *Stack {
	s := &Stack{
		throwScale: DefaultThrowScale,
		restJitter: DefaultRestJitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = NewRand()
	}
	return s
}

// Initialize creates one card per image reference. The first reference ends
// up on top. It may be called only once.
func (s *Stack) Initialize(refs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return ErrAlreadyInitialized
	}
	n := len(refs)
	s.cards = make([]Card, n)
	for i, ref := range refs {
		tilt := initialTilt * float64(i)
		// Index 0 stays +0 so it never prints as -0.0.
		if i%2 == 0 && i > 0 {
			tilt = -tilt
		}
		c := Card{
			ID:       i + 1,
			ImageRef: ref,
			Z:        n - i,
		}
		c.rest(tilt)
		s.cards[i] = c
	}
	s.initialized = true
	return nil
}

// Len returns the number of cards.
func (s *Stack) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards)
}

// TopCard returns the card with the highest rank.
func (s *Stack) TopCard() (Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.topIndexLocked()
	if err != nil {
		return Card{}, err
	}
	return s.cards[idx], nil
}

// Card returns the card with the given id.
func (s *Stack) Card(id int) (Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return Card{}, false
	}
	return s.cards[idx], true
}

// Cards returns a snapshot of all cards ordered from top to bottom.
func (s *Stack) Cards() []Card {
	s.mu.RLock()
	out := make([]Card, len(s.cards))
	copy(out, s.cards)
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Z > out[j].Z })
	return out
}

// Thrown returns the card currently mid-throw, if any.
func (s *Stack) Thrown() (Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cards {
		if c.Thrown {
			return c, true
		}
	}
	return Card{}, false
}

// Draggable reports whether id is the top card and not mid-throw.
func (s *Stack) Draggable(id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draggableLocked(id)
}

// UpdateDrag moves the top card. Any other card, or a card mid-throw, is
// ignored and false is returned.
func (s *Stack) UpdateDrag(id int, offset Vec2, rotation float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.draggableLocked(id) {
		return false
	}
	c := &s.cards[s.indexLocked(id)]
	c.Offset = offset
	c.Rotation = rotation
	return true
}

// BeginThrow sends the top card toward its throw destination. The card
// stays thrown until CompleteThrow recycles it.
func (s *Stack) BeginThrow(id int, offset Vec2, rotation float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownCard, id)
	}
	if s.thrownLocked() {
		return ErrThrowInFlight
	}
	top, err := s.topIndexLocked()
	if err != nil {
		return err
	}
	if top != idx {
		return fmt.Errorf("%w: %d", ErrNotTop, id)
	}
	c := &s.cards[idx]
	c.Thrown = true
	c.Scale = s.throwScale
	c.Opacity = 0
	c.Offset = offset
	c.Rotation = rotation
	return nil
}

// CompleteThrow recycles a card: it gets a rest transform with a fresh
// random rotation and moves to the bottom, lifting every card that was
// below it by one rank.
func (s *Stack) CompleteThrow(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownCard, id)
	}
	oldZ := s.cards[idx].Z
	for i := range s.cards {
		if i != idx && s.cards[i].Z < oldZ {
			s.cards[i].Z++
		}
	}
	c := &s.cards[idx]
	c.Z = 1
	c.rest((s.rng.Float64()*2 - 1) * s.restJitter)
	return nil
}

// SnapBack returns a card to its rest offset and rotation without touching
// its rank.
func (s *Stack) SnapBack(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownCard, id)
	}
	c := &s.cards[idx]
	c.Offset = Vec2{}
	c.Rotation = c.RestRotation
	return nil
}

// JumpToFront makes id the top card in one step. Cards that were above it
// drop one rank; relative order is otherwise preserved.
func (s *Stack) JumpToFront(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownCard, id)
	}
	if s.thrownLocked() {
		return ErrThrowInFlight
	}
	n := len(s.cards)
	oldZ := s.cards[idx].Z
	if oldZ == n {
		return nil
	}
	for i := range s.cards {
		if i != idx && s.cards[i].Z > oldZ {
			s.cards[i].Z--
		}
	}
	s.cards[idx].Z = n
	return nil
}

// CyclePath returns, top first, the ids that must be recycled for id to
// reach the top.
func (s *Stack) CyclePath(id int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCard, id)
	}
	target := s.cards[idx].Z
	above := make([]Card, 0, len(s.cards)-target)
	for _, c := range s.cards {
		if c.Z > target {
			above = append(above, c)
		}
	}
	sort.Slice(above, func(i, j int) bool { return above[i].Z > above[j].Z })
	path := make([]int, len(above))
	for i, c := range above {
		path[i] = c.ID
	}
	return path, nil
}

// Validate checks that ranks form a permutation of 1..N and that at most
// one card is mid-throw.
func (s *Stack) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.cards)
	seen := make([]bool, n+1)
	thrown := 0
	for _, c := range s.cards {
		if c.Z < 1 || c.Z > n {
			return fmt.Errorf("card %d has rank %d outside 1..%d", c.ID, c.Z, n)
		}
		if seen[c.Z] {
			return fmt.Errorf("rank %d assigned twice", c.Z)
		}
		seen[c.Z] = true
		if c.Thrown {
			thrown++
		}
	}
	if thrown > 1 {
		return fmt.Errorf("%d cards thrown at once", thrown)
	}
	return nil
}

func (s *Stack) topIndexLocked() (int, error) {
	if !s.initialized {
		return -1, ErrNotInitialized
	}
	if len(s.cards) == 0 {
		return -1, ErrEmptyStack
	}
	top := 0
	for i, c := range s.cards {
		if c.Z > s.cards[top].Z {
			top = i
		}
	}
	return top, nil
}

func (s *Stack) draggableLocked(id int) bool {
	top, err := s.topIndexLocked()
	if err != nil {
		return false
	}
	c := s.cards[top]
	return c.ID == id && !c.Thrown
}

func (s *Stack) thrownLocked() bool {
	for _, c := range s.cards {
		if c.Thrown {
			return true
		}
	}
	return false
}

// indexLocked maps an id to its slot; ids are assigned 1..N in creation order.
func (s *Stack) indexLocked(id int) int {
	if id < 1 || id > len(s.cards) {
		return -1
	}
	return id - 1
}
