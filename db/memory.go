package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"responseready/models"

	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// MemoryDB is an in-process record store with the same query semantics as
// the Firestore adapter: prefix ranges, equality filters, ordered listings,
// store-assigned timestamps and realtime feeds. Equality-filtered incident
// reads come back in map order, like the hosted store's unordered results.
type MemoryDB struct {
	mu sync.RWMutex

	users       map[string]models.UserProfile
	passwords   map[string]string
	incidents   map[string]models.Incident
	individuals map[string]models.Individual
	vehicles    map[string]models.Vehicle
	comms       map[string]models.Comm

	incidentFeeds map[*memFeed[models.Incident]]string // reporter filter, "" for all
	commFeeds     map[*memFeed[models.Comm]]struct{}

	// Now stamps created documents. Tests replace it for deterministic order.
	Now func() time.Time
}

var _ Store = (*MemoryDB)(nil)

// NewMemoryDB returns an empty in-memory store
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:         map[string]models.UserProfile{},
		passwords:     map[string]string{},
		incidents:     map[string]models.Incident{},
		individuals:   map[string]models.Individual{},
		vehicles:      map[string]models.Vehicle{},
		comms:         map[string]models.Comm{},
		incidentFeeds: map[*memFeed[models.Incident]]string{},
		commFeeds:     map[*memFeed[models.Comm]]struct{}{},
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// Close stops every open feed
func (m *MemoryDB) Close() error {
	m.mu.Lock()
	incidentFeeds := m.incidentFeeds
	commFeeds := m.commFeeds
	m.incidentFeeds = map[*memFeed[models.Incident]]string{}
	m.commFeeds = map[*memFeed[models.Comm]]struct{}{}
	m.mu.Unlock()

	for f := range incidentFeeds {
		f.halt()
	}
	for f := range commFeeds {
		f.halt()
	}
	return nil
}

func inPrefixRange(value, prefix string) bool {
	return value >= prefix && value <= prefix+prefixEnd
}

func cloneIndividual(i models.Individual) models.Individual {
	i.Guns = append([]string(nil), i.Guns...)
	return i
}

// --- User Operations ---

func (m *MemoryDB) IsFirstUser(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users) == 0, nil
}

func (m *MemoryDB) CreateUser(ctx context.Context, user *models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.UID == "" {
		user.UID = uuid.NewString()
	}
	if _, exists := m.users[user.UID]; exists {
		return models.ErrEmailAlreadyExists
	}
	m.users[user.UID] = *user
	return nil
}

func (m *MemoryDB) GetUser(ctx context.Context, uid string) (*models.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, found := m.users[uid]
	if !found {
		return nil, notFound("user", uid)
	}
	return &user, nil
}

func (m *MemoryDB) GetUserByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, notFound("user", email)
}

func (m *MemoryDB) GetAllUsers(ctx context.Context) ([]models.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.UserProfile, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	return users, nil
}

func (m *MemoryDB) UpdateUserRole(ctx context.Context, uid string, role models.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, found := m.users[uid]
	if !found {
		return notFound("user", uid)
	}
	user.Role = role
	m.users[uid] = user
	return nil
}

func (m *MemoryDB) UpdateUserCallSign(ctx context.Context, uid, callSign string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, found := m.users[uid]
	if !found {
		return notFound("user", uid)
	}
	user.CallSign = callSign
	m.users[uid] = user
	return nil
}

func (m *MemoryDB) StorePasswordHash(ctx context.Context, uid, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwords[uid] = hash
	return nil
}

func (m *MemoryDB) GetPasswordHash(ctx context.Context, uid string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash, found := m.passwords[uid]
	if !found {
		return "", notFound("password hash", uid)
	}
	return hash, nil
}

// --- Incident Operations ---

func (m *MemoryDB) CreateIncident(ctx context.Context, incident *models.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	incident.ID = uuid.NewString()
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = m.Now()
	}
	m.incidents[incident.ID] = *incident
	m.publishIncidentsLocked()
	return nil
}

func (m *MemoryDB) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	incident, found := m.incidents[id]
	if !found {
		return nil, notFound("incident", id)
	}
	return &incident, nil
}

func (m *MemoryDB) UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	incident, found := m.incidents[id]
	if !found {
		return notFound("incident", id)
	}
	incident.Status = status
	m.incidents[id] = incident
	m.publishIncidentsLocked()
	return nil
}

func (m *MemoryDB) incidentsLocked(reporterID string) []models.Incident {
	incidents := []models.Incident{}
	for _, incident := range m.incidents {
		if reporterID == "" || incident.ReporterID == reporterID {
			incidents = append(incidents, incident)
		}
	}
	if reporterID == "" {
		sort.SliceStable(incidents, func(i, j int) bool {
			if incidents[i].CreatedAt.Equal(incidents[j].CreatedAt) {
				return incidents[i].ID < incidents[j].ID
			}
			return incidents[i].CreatedAt.After(incidents[j].CreatedAt)
		})
	}
	return incidents
}

func (m *MemoryDB) publishIncidentsLocked() {
	for feed, reporterID := range m.incidentFeeds {
		feed.push(m.incidentsLocked(reporterID))
	}
}

func (m *MemoryDB) ListIncidents(ctx context.Context) ([]models.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.incidentsLocked(""), nil
}

func (m *MemoryDB) ListIncidentsByReporter(ctx context.Context, reporterID string) ([]models.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.incidentsLocked(reporterID), nil
}

func (m *MemoryDB) WatchIncidents(ctx context.Context) (Feed[models.Incident], error) {
	return m.watchIncidents(ctx, "")
}

func (m *MemoryDB) WatchIncidentsByReporter(ctx context.Context, reporterID string) (Feed[models.Incident], error) {
	return m.watchIncidents(ctx, reporterID)
}

func (m *MemoryDB) watchIncidents(ctx context.Context, reporterID string) (Feed[models.Incident], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var feed *memFeed[models.Incident]
	feed = newMemFeed[models.Incident](ctx, func() {
		m.mu.Lock()
		delete(m.incidentFeeds, feed)
		m.mu.Unlock()
	})
	m.incidentFeeds[feed] = reporterID
	feed.push(m.incidentsLocked(reporterID))
	return feed, nil
}

// --- Individual Operations ---

func (m *MemoryDB) CreateIndividual(ctx context.Context, individual *models.Individual) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	individual.ID = uuid.NewString()
	m.individuals[individual.ID] = cloneIndividual(*individual)
	return nil
}

func (m *MemoryDB) GetIndividualByName(ctx context.Context, name string) (*models.Individual, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, individual := range m.individuals {
		if individual.Name == name {
			found := cloneIndividual(individual)
			return &found, nil
		}
	}
	return nil, notFound("individual", name)
}

func (m *MemoryDB) SearchIndividualsByName(ctx context.Context, prefix string) ([]models.Individual, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	individuals := []models.Individual{}
	for _, individual := range m.individuals {
		if inPrefixRange(individual.Name, prefix) {
			individuals = append(individuals, cloneIndividual(individual))
		}
	}
	sort.Slice(individuals, func(i, j int) bool { return individuals[i].Name < individuals[j].Name })
	return individuals, nil
}

func (m *MemoryDB) UpdateIndividual(ctx context.Context, individual *models.Individual) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.individuals[individual.ID]; !found {
		return notFound("individual", individual.ID)
	}
	m.individuals[individual.ID] = cloneIndividual(*individual)
	return nil
}

// --- Vehicle Operations ---

func (m *MemoryDB) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	vehicle.ID = uuid.NewString()
	m.vehicles[vehicle.ID] = *vehicle
	return nil
}

func (m *MemoryDB) vehiclesWhere(match func(models.Vehicle) bool) []models.Vehicle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vehicles := []models.Vehicle{}
	for _, vehicle := range m.vehicles {
		if match(vehicle) {
			vehicles = append(vehicles, vehicle)
		}
	}
	return vehicles
}

func (m *MemoryDB) GetVehiclesByPlate(ctx context.Context, plate string) ([]models.Vehicle, error) {
	return m.vehiclesWhere(func(v models.Vehicle) bool { return v.Plate == plate }), nil
}

func (m *MemoryDB) GetVehiclesByOwner(ctx context.Context, owner string) ([]models.Vehicle, error) {
	return m.vehiclesWhere(func(v models.Vehicle) bool { return v.Owner == owner }), nil
}

func (m *MemoryDB) SearchVehiclesByOwner(ctx context.Context, prefix string) ([]models.Vehicle, error) {
	vehicles := m.vehiclesWhere(func(v models.Vehicle) bool { return inPrefixRange(v.Owner, prefix) })
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].Owner < vehicles[j].Owner })
	return vehicles, nil
}

func (m *MemoryDB) UpdateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.vehicles[vehicle.ID]; !found {
		return notFound("vehicle", vehicle.ID)
	}
	m.vehicles[vehicle.ID] = *vehicle
	return nil
}

func (m *MemoryDB) UpdateCivilianRecord(ctx context.Context, individual *models.Individual, vehicles []models.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.individuals[individual.ID]; !found {
		return notFound("individual", individual.ID)
	}
	for _, v := range vehicles {
		if _, found := m.vehicles[v.ID]; !found {
			return notFound("vehicle", v.ID)
		}
	}

	m.individuals[individual.ID] = cloneIndividual(*individual)
	for _, v := range vehicles {
		m.vehicles[v.ID] = v
	}
	return nil
}

// --- Comm Operations ---

func (m *MemoryDB) CreateComm(ctx context.Context, comm *models.Comm) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	comm.ID = uuid.NewString()
	if comm.CreatedAt.IsZero() {
		comm.CreatedAt = m.Now()
	}
	m.comms[comm.ID] = *comm

	snapshot := m.commsLocked()
	for feed := range m.commFeeds {
		feed.push(snapshot)
	}
	return nil
}

func (m *MemoryDB) commsLocked() []models.Comm {
	comms := make([]models.Comm, 0, len(m.comms))
	for _, comm := range m.comms {
		comms = append(comms, comm)
	}
	sort.SliceStable(comms, func(i, j int) bool {
		if comms[i].CreatedAt.Equal(comms[j].CreatedAt) {
			return comms[i].ID < comms[j].ID
		}
		return comms[i].CreatedAt.Before(comms[j].CreatedAt)
	})
	return comms
}

func (m *MemoryDB) ListComms(ctx context.Context) ([]models.Comm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commsLocked(), nil
}

func (m *MemoryDB) WatchComms(ctx context.Context) (Feed[models.Comm], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var feed *memFeed[models.Comm]
	feed = newMemFeed[models.Comm](ctx, func() {
		m.mu.Lock()
		delete(m.commFeeds, feed)
		m.mu.Unlock()
	})
	m.commFeeds[feed] = struct{}{}
	feed.push(m.commsLocked())
	return feed, nil
}

// --- Maintenance ---

func (m *MemoryDB) ClearCollection(ctx context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	switch name {
	case models.CollectionUsers:
		n = len(m.users)
		m.users = map[string]models.UserProfile{}
	case models.CollectionPasswords:
		n = len(m.passwords)
		m.passwords = map[string]string{}
	case models.CollectionIncidents:
		n = len(m.incidents)
		m.incidents = map[string]models.Incident{}
		m.publishIncidentsLocked()
	case models.CollectionIndividuals:
		n = len(m.individuals)
		m.individuals = map[string]models.Individual{}
	case models.CollectionVehicles:
		n = len(m.vehicles)
		m.vehicles = map[string]models.Vehicle{}
	case models.CollectionComms:
		n = len(m.comms)
		m.comms = map[string]models.Comm{}
		snapshot := m.commsLocked()
		for feed := range m.commFeeds {
			feed.push(snapshot)
		}
	}
	return n, nil
}

// memFeed holds at most one undelivered snapshot; a newer snapshot replaces
// an older one that was never read, matching listener coalescing.
type memFeed[T any] struct {
	mu      sync.Mutex
	pending []T
	ready   bool

	signal  chan struct{}
	stopped chan struct{}
	once    sync.Once
	ctx     context.Context
	onStop  func()
}

func newMemFeed[T any](ctx context.Context, onStop func()) *memFeed[T] {
	return &memFeed[T]{
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
		ctx:     ctx,
		onStop:  onStop,
	}
}

func (f *memFeed[T]) push(snapshot []T) {
	f.mu.Lock()
	f.pending = snapshot
	f.ready = true
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *memFeed[T]) Next() ([]T, error) {
	for {
		select {
		case <-f.stopped:
			return nil, iterator.Done
		default:
		}

		f.mu.Lock()
		if f.ready {
			snapshot := f.pending
			f.pending, f.ready = nil, false
			f.mu.Unlock()
			return snapshot, nil
		}
		f.mu.Unlock()

		select {
		case <-f.signal:
		case <-f.stopped:
			return nil, iterator.Done
		case <-f.ctx.Done():
			return nil, iterator.Done
		}
	}
}

func (f *memFeed[T]) Stop() {
	f.halt()
	f.onStop()
}

func (f *memFeed[T]) halt() {
	f.once.Do(func() { close(f.stopped) })
}
