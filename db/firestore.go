package db

import (
	"context"
	"errors"
	"fmt"

	"responseready/models"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewFirebaseApp initializes the Firebase app shared by Firestore and the
// optional Firebase Auth verifier. An empty credentialsPath falls back to
// application default credentials (or the emulator when
// FIRESTORE_EMULATOR_HOST is set).
func NewFirebaseApp(ctx context.Context, projectID, credentialsPath string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	config := &firebase.Config{ProjectID: projectID}
	app, err := firebase.NewApp(ctx, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	return app, nil
}

// FirestoreDB wraps the Firestore client
type FirestoreDB struct {
	client *firestore.Client
	log    zerolog.Logger
}

var _ Store = (*FirestoreDB)(nil)

// NewFirestoreDB opens a Firestore client from an initialized Firebase app
func NewFirestoreDB(ctx context.Context, app *firebase.App, logger zerolog.Logger) (*FirestoreDB, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}

	logger.Info().Msg("✅ Connected to Firestore")

	return &FirestoreDB{
		client: client,
		log:    logger,
	}, nil
}

// Close closes the Firestore client
func (db *FirestoreDB) Close() error {
	return db.client.Close()
}

// collect drains a document iterator, skipping documents that fail to decode.
func collect[T any](iter *firestore.DocumentIterator, kind string, setID func(*T, string), logger zerolog.Logger) ([]T, error) {
	defer iter.Stop()

	items := []T{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storeError("iterate "+kind, err)
		}

		var item T
		if err := doc.DataTo(&item); err != nil {
			logger.Warn().Err(err).Str("doc_id", doc.Ref.ID).Msgf("⚠️  failed to parse %s", kind)
			continue
		}
		setID(&item, doc.Ref.ID)
		items = append(items, item)
	}

	return items, nil
}

// snapshotFeed adapts a Firestore realtime listener to Feed.
type snapshotFeed[T any] struct {
	it    *firestore.QuerySnapshotIterator
	kind  string
	setID func(*T, string)
	log   zerolog.Logger
}

func (f *snapshotFeed[T]) Next() ([]T, error) {
	snap, err := f.it.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) || errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
			return nil, iterator.Done
		}
		return nil, storeError("watch "+f.kind, err)
	}
	return collect(snap.Documents, f.kind, f.setID, f.log)
}

func (f *snapshotFeed[T]) Stop() {
	f.it.Stop()
}

func setUserID(u *models.UserProfile, id string)      { u.UID = id }
func setIncidentID(i *models.Incident, id string)     { i.ID = id }
func setIndividualID(i *models.Individual, id string) { i.ID = id }
func setVehicleID(v *models.Vehicle, id string)       { v.ID = id }
func setCommID(c *models.Comm, id string)             { c.ID = id }

// --- User Operations ---

// IsFirstUser reports whether the users collection is empty
func (db *FirestoreDB) IsFirstUser(ctx context.Context) (bool, error) {
	iter := db.client.Collection(models.CollectionUsers).Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err == iterator.Done {
		return true, nil
	}
	if err != nil {
		return false, storeError("count users", err)
	}
	return false, nil
}

// CreateUser creates a user profile, assigning a document ID when UID is empty
func (db *FirestoreDB) CreateUser(ctx context.Context, user *models.UserProfile) error {
	users := db.client.Collection(models.CollectionUsers)
	ref := users.NewDoc()
	if user.UID != "" {
		ref = users.Doc(user.UID)
	}
	if _, err := ref.Create(ctx, user); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("user %s: %w", ref.ID, models.ErrEmailAlreadyExists)
		}
		return storeError("create user", err)
	}
	user.UID = ref.ID
	return nil
}

// GetUser retrieves a user by ID
func (db *FirestoreDB) GetUser(ctx context.Context, uid string) (*models.UserProfile, error) {
	doc, err := db.client.Collection(models.CollectionUsers).Doc(uid).Get(ctx)
	if err != nil {
		return nil, storeError("get user", err)
	}

	var user models.UserProfile
	if err := doc.DataTo(&user); err != nil {
		return nil, storeError("parse user", err)
	}
	user.UID = doc.Ref.ID

	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (db *FirestoreDB) GetUserByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	iter := db.client.Collection(models.CollectionUsers).
		Where("email", "==", email).
		Limit(1).
		Documents(ctx)

	users, err := collect(iter, "user", setUserID, db.log)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, notFound("user", email)
	}
	return &users[0], nil
}

// GetAllUsers retrieves all users
func (db *FirestoreDB) GetAllUsers(ctx context.Context) ([]models.UserProfile, error) {
	return collect(db.client.Collection(models.CollectionUsers).Documents(ctx), "user", setUserID, db.log)
}

// UpdateUserRole sets a user's role
func (db *FirestoreDB) UpdateUserRole(ctx context.Context, uid string, role models.UserRole) error {
	_, err := db.client.Collection(models.CollectionUsers).Doc(uid).Update(ctx, []firestore.Update{
		{Path: "role", Value: role},
	})
	if err != nil {
		return storeError("update user role", err)
	}
	return nil
}

// UpdateUserCallSign sets a user's call sign
func (db *FirestoreDB) UpdateUserCallSign(ctx context.Context, uid, callSign string) error {
	_, err := db.client.Collection(models.CollectionUsers).Doc(uid).Update(ctx, []firestore.Update{
		{Path: "callSign", Value: callSign},
	})
	if err != nil {
		return storeError("update call sign", err)
	}
	return nil
}

// --- Password Operations ---

// StorePasswordHash stores a password hash for a user
func (db *FirestoreDB) StorePasswordHash(ctx context.Context, uid, hash string) error {
	_, err := db.client.Collection(models.CollectionPasswords).Doc(uid).Set(ctx, map[string]interface{}{
		"user_id":       uid,
		"password_hash": hash,
		"updated_at":    firestore.ServerTimestamp,
	})
	if err != nil {
		return storeError("store password hash", err)
	}
	return nil
}

// GetPasswordHash retrieves a password hash for a user
func (db *FirestoreDB) GetPasswordHash(ctx context.Context, uid string) (string, error) {
	doc, err := db.client.Collection(models.CollectionPasswords).Doc(uid).Get(ctx)
	if err != nil {
		return "", storeError("get password hash", err)
	}

	if hash, ok := doc.Data()["password_hash"].(string); ok {
		return hash, nil
	}
	return "", notFound("password hash", uid)
}

// --- Incident Operations ---

// CreateIncident adds an incident; a zero CreatedAt becomes the server timestamp
func (db *FirestoreDB) CreateIncident(ctx context.Context, incident *models.Incident) error {
	ref := db.client.Collection(models.CollectionIncidents).NewDoc()
	result, err := ref.Create(ctx, incident)
	if err != nil {
		return storeError("create incident", err)
	}
	incident.ID = ref.ID
	if incident.CreatedAt.IsZero() {
		// A server timestamp resolves to the commit time.
		incident.CreatedAt = result.UpdateTime
	}
	return nil
}

// GetIncident retrieves an incident by ID
func (db *FirestoreDB) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	doc, err := db.client.Collection(models.CollectionIncidents).Doc(id).Get(ctx)
	if err != nil {
		return nil, storeError("get incident", err)
	}

	var incident models.Incident
	if err := doc.DataTo(&incident); err != nil {
		return nil, storeError("parse incident", err)
	}
	incident.ID = doc.Ref.ID

	return &incident, nil
}

// UpdateIncidentStatus sets an incident's status
func (db *FirestoreDB) UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus) error {
	_, err := db.client.Collection(models.CollectionIncidents).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: status},
	})
	if err != nil {
		return storeError("update incident status", err)
	}
	return nil
}

func (db *FirestoreDB) incidentsNewestFirst() firestore.Query {
	return db.client.Collection(models.CollectionIncidents).OrderBy("timestamp", firestore.Desc)
}

func (db *FirestoreDB) incidentsByReporter(reporterID string) firestore.Query {
	return db.client.Collection(models.CollectionIncidents).Where("reporterId", "==", reporterID)
}

// ListIncidents retrieves all incidents, newest first
func (db *FirestoreDB) ListIncidents(ctx context.Context) ([]models.Incident, error) {
	return collect(db.incidentsNewestFirst().Documents(ctx), "incident", setIncidentID, db.log)
}

// ListIncidentsByReporter retrieves the incidents filed by one reporter, unordered
func (db *FirestoreDB) ListIncidentsByReporter(ctx context.Context, reporterID string) ([]models.Incident, error) {
	return collect(db.incidentsByReporter(reporterID).Documents(ctx), "incident", setIncidentID, db.log)
}

// WatchIncidents listens to all incidents, newest first
func (db *FirestoreDB) WatchIncidents(ctx context.Context) (Feed[models.Incident], error) {
	return &snapshotFeed[models.Incident]{
		it:    db.incidentsNewestFirst().Snapshots(ctx),
		kind:  "incident",
		setID: setIncidentID,
		log:   db.log,
	}, nil
}

// WatchIncidentsByReporter listens to one reporter's incidents, unordered
func (db *FirestoreDB) WatchIncidentsByReporter(ctx context.Context, reporterID string) (Feed[models.Incident], error) {
	return &snapshotFeed[models.Incident]{
		it:    db.incidentsByReporter(reporterID).Snapshots(ctx),
		kind:  "incident",
		setID: setIncidentID,
		log:   db.log,
	}, nil
}

// --- Individual Operations ---

// CreateIndividual adds an individual record
func (db *FirestoreDB) CreateIndividual(ctx context.Context, individual *models.Individual) error {
	ref := db.client.Collection(models.CollectionIndividuals).NewDoc()
	if _, err := ref.Create(ctx, individual); err != nil {
		return storeError("create individual", err)
	}
	individual.ID = ref.ID
	return nil
}

// GetIndividualByName returns the first individual with exactly this name
func (db *FirestoreDB) GetIndividualByName(ctx context.Context, name string) (*models.Individual, error) {
	iter := db.client.Collection(models.CollectionIndividuals).
		Where("name", "==", name).
		Limit(1).
		Documents(ctx)

	individuals, err := collect(iter, "individual", setIndividualID, db.log)
	if err != nil {
		return nil, err
	}
	if len(individuals) == 0 {
		return nil, notFound("individual", name)
	}
	return &individuals[0], nil
}

// SearchIndividualsByName returns individuals whose name starts with prefix
func (db *FirestoreDB) SearchIndividualsByName(ctx context.Context, prefix string) ([]models.Individual, error) {
	iter := db.client.Collection(models.CollectionIndividuals).
		Where("name", ">=", prefix).
		Where("name", "<=", prefix+prefixEnd).
		Documents(ctx)
	return collect(iter, "individual", setIndividualID, db.log)
}

// UpdateIndividual overwrites the fields of an existing individual
func (db *FirestoreDB) UpdateIndividual(ctx context.Context, individual *models.Individual) error {
	_, err := db.client.Collection(models.CollectionIndividuals).Doc(individual.ID).Update(ctx, individualUpdates(individual))
	if err != nil {
		return storeError("update individual", err)
	}
	return nil
}

func individualUpdates(individual *models.Individual) []firestore.Update {
	return []firestore.Update{
		{Path: "name", Value: individual.Name},
		{Path: "dob", Value: individual.DOB},
		{Path: "address", Value: individual.Address},
		{Path: "license_status", Value: individual.LicenseStatus},
		{Path: "gunLicenseStatus", Value: individual.GunLicenseStatus},
		{Path: "insuranceStatus", Value: individual.InsuranceStatus},
		{Path: "guns", Value: individual.Guns},
	}
}

// --- Vehicle Operations ---

// CreateVehicle adds a vehicle record
func (db *FirestoreDB) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	ref := db.client.Collection(models.CollectionVehicles).NewDoc()
	if _, err := ref.Create(ctx, vehicle); err != nil {
		return storeError("create vehicle", err)
	}
	vehicle.ID = ref.ID
	return nil
}

// GetVehiclesByPlate returns vehicles with exactly this plate
func (db *FirestoreDB) GetVehiclesByPlate(ctx context.Context, plate string) ([]models.Vehicle, error) {
	iter := db.client.Collection(models.CollectionVehicles).Where("plate", "==", plate).Documents(ctx)
	return collect(iter, "vehicle", setVehicleID, db.log)
}

// GetVehiclesByOwner returns vehicles whose owner is exactly this name
func (db *FirestoreDB) GetVehiclesByOwner(ctx context.Context, owner string) ([]models.Vehicle, error) {
	iter := db.client.Collection(models.CollectionVehicles).Where("owner", "==", owner).Documents(ctx)
	return collect(iter, "vehicle", setVehicleID, db.log)
}

// SearchVehiclesByOwner returns vehicles whose owner starts with prefix
func (db *FirestoreDB) SearchVehiclesByOwner(ctx context.Context, prefix string) ([]models.Vehicle, error) {
	iter := db.client.Collection(models.CollectionVehicles).
		Where("owner", ">=", prefix).
		Where("owner", "<=", prefix+prefixEnd).
		Documents(ctx)
	return collect(iter, "vehicle", setVehicleID, db.log)
}

// UpdateVehicle overwrites the fields of an existing vehicle
func (db *FirestoreDB) UpdateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	_, err := db.client.Collection(models.CollectionVehicles).Doc(vehicle.ID).Update(ctx, vehicleUpdates(vehicle))
	if err != nil {
		return storeError("update vehicle", err)
	}
	return nil
}

func vehicleUpdates(vehicle *models.Vehicle) []firestore.Update {
	return []firestore.Update{
		{Path: "plate", Value: vehicle.Plate},
		{Path: "model", Value: vehicle.Model},
		{Path: "owner", Value: vehicle.Owner},
		{Path: "registration_status", Value: vehicle.RegistrationStatus},
	}
}

// UpdateCivilianRecord saves an individual and its vehicles in one transaction
func (db *FirestoreDB) UpdateCivilianRecord(ctx context.Context, individual *models.Individual, vehicles []models.Vehicle) error {
	err := db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := db.client.Collection(models.CollectionIndividuals).Doc(individual.ID)
		if err := tx.Update(ref, individualUpdates(individual)); err != nil {
			return err
		}
		for i := range vehicles {
			ref := db.client.Collection(models.CollectionVehicles).Doc(vehicles[i].ID)
			if err := tx.Update(ref, vehicleUpdates(&vehicles[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeError("update civilian record", err)
	}
	return nil
}

// --- Comm Operations ---

// CreateComm appends a message; a zero CreatedAt becomes the server timestamp
func (db *FirestoreDB) CreateComm(ctx context.Context, comm *models.Comm) error {
	ref := db.client.Collection(models.CollectionComms).NewDoc()
	result, err := ref.Create(ctx, comm)
	if err != nil {
		return storeError("create comm", err)
	}
	comm.ID = ref.ID
	if comm.CreatedAt.IsZero() {
		// A server timestamp resolves to the commit time.
		comm.CreatedAt = result.UpdateTime
	}
	return nil
}

func (db *FirestoreDB) commsOldestFirst() firestore.Query {
	return db.client.Collection(models.CollectionComms).OrderBy("timestamp", firestore.Asc)
}

// ListComms retrieves all messages, oldest first
func (db *FirestoreDB) ListComms(ctx context.Context) ([]models.Comm, error) {
	return collect(db.commsOldestFirst().Documents(ctx), "comm", setCommID, db.log)
}

// WatchComms listens to all messages, oldest first
func (db *FirestoreDB) WatchComms(ctx context.Context) (Feed[models.Comm], error) {
	return &snapshotFeed[models.Comm]{
		it:    db.commsOldestFirst().Snapshots(ctx),
		kind:  "comm",
		setID: setCommID,
		log:   db.log,
	}, nil
}

// --- Maintenance ---

// ClearCollection deletes every document in the named collection
func (db *FirestoreDB) ClearCollection(ctx context.Context, name string) (int, error) {
	iter := db.client.Collection(name).Documents(ctx)
	defer iter.Stop()

	deleted := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, storeError("iterate "+name, err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return deleted, storeError("delete from "+name, err)
		}
		deleted++
	}
	return deleted, nil
}
