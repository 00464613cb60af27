package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/tablebook/internal/storage"
	"github.com/region23/tablebook/internal/storage/models"
)

func newTestStorage(t *testing.T) (*SQLiteStorage, *models.Restaurant) {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err, "failed to create test storage")
	t.Cleanup(func() { s.Close() })

	restaurant := &models.Restaurant{Name: "Casa"}
	require.NoError(t, s.CreateRestaurant(context.Background(), restaurant))

	return s, restaurant
}

func createTable(t *testing.T, s *SQLiteStorage, restaurantID, name string, capacity int, location string) *models.Table {
	t.Helper()

	table := &models.Table{RestaurantID: restaurantID, Name: name, Capacity: capacity}
	if location != "" {
		table.Location = &location
	}
	require.NoError(t, s.CreateTable(context.Background(), table))
	return table
}

func reservationAt(restaurantID, tableID string, start time.Time, d time.Duration) *models.Reservation {
	return &models.Reservation{
		RestaurantID:    restaurantID,
		TableID:         &tableID,
		ClientName:      "Ana",
		ClientContact:   "+351900000000",
		PartySize:       2,
		ReservationDate: start.Format("2006-01-02"),
		ReservationTime: start.Format("15:04"),
		StartsAt:        start,
		EndsAt:          start.Add(d),
	}
}

func TestTables_CRUD(t *testing.T) {
	s, restaurant := newTestStorage(t)
	ctx := context.Background()

	t2 := createTable(t, s, restaurant.ID, "T2", 4, "Patio")
	createTable(t, s, restaurant.ID, "T1", 2, "")

	tables, err := s.ListTables(ctx, models.TableFilter{RestaurantID: restaurant.ID})
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "T1", tables[0].Name, "tables are ordered by name")
	assert.Nil(t, tables[0].Location)
	assert.Equal(t, models.TableAvailable, tables[1].Status)

	capacity := 6
	empty := ""
	updated, err := s.UpdateTable(ctx, t2.ID, models.TablePatch{Capacity: &capacity, Location: &empty})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Capacity)
	assert.Nil(t, updated.Location, "empty location clears the column")

	require.NoError(t, s.DeleteTable(ctx, t2.ID))
	_, err = s.GetTable(ctx, t2.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, s.DeleteTable(ctx, t2.ID), storage.ErrNotFound)
}

func TestTables_DuplicateName(t *testing.T) {
	s, restaurant := newTestStorage(t)
	createTable(t, s, restaurant.ID, "T1", 2, "")

	err := s.CreateTable(context.Background(), &models.Table{RestaurantID: restaurant.ID, Name: "T1", Capacity: 4})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestJoinTables_ConditionalWrite(t *testing.T) {
	s, restaurant := newTestStorage(t)
	ctx := context.Background()

	t1 := createTable(t, s, restaurant.ID, "T1", 2, "")
	t2 := createTable(t, s, restaurant.ID, "T2", 4, "")
	t3 := createTable(t, s, restaurant.ID, "T3", 4, "")

	require.NoError(t, s.JoinTables(ctx, []string{t1.ID, t2.ID}, "T1-T2"))

	// T2 уже в группе: вся операция откатывается, T3 не меняется
	err := s.JoinTables(ctx, []string{t3.ID, t2.ID}, "T2-T3")
	assert.ErrorIs(t, err, storage.ErrJoinConflict)

	got3, err := s.GetTable(ctx, t3.ID)
	require.NoError(t, err)
	assert.False(t, got3.IsJoined)
	assert.Nil(t, got3.JoinedGroupID)

	members, err := s.ListTables(ctx, models.TableFilter{RestaurantID: restaurant.ID, JoinedGroupID: "T1-T2"})
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, s.UnjoinTables(ctx, []string{t1.ID, t2.ID}))
	got1, err := s.GetTable(ctx, t1.ID)
	require.NoError(t, err)
	assert.False(t, got1.IsJoined)
	assert.Equal(t, 2, got1.Capacity)
}

func TestJoinTables_GroupIDIsUniquePerRestaurant(t *testing.T) {
	s, restaurant := newTestStorage(t)
	ctx := context.Background()

	ab := createTable(t, s, restaurant.ID, "A-B", 2, "")
	c := createTable(t, s, restaurant.ID, "C", 2, "")
	a := createTable(t, s, restaurant.ID, "A", 2, "")
	bc := createTable(t, s, restaurant.ID, "B-C", 2, "")

	require.NoError(t, s.JoinTables(ctx, []string{ab.ID, c.ID}, "A-B-C"))

	err := s.JoinTables(ctx, []string{a.ID, bc.ID}, "A-B-C")
	assert.ErrorIs(t, err, storage.ErrJoinConflict)

	got, err := s.GetTable(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsJoined)

	other := &models.Restaurant{Name: "Outra"}
	require.NoError(t, s.CreateRestaurant(ctx, other))
	o1 := createTable(t, s, other.ID, "A-B", 2, "")
	o2 := createTable(t, s, other.ID, "C", 2, "")
	assert.NoError(t, s.JoinTables(ctx, []string{o1.ID, o2.ID}, "A-B-C"), "same id in another restaurant")
}

func TestCreateReservation_OverlapConstraint(t *testing.T) {
	s, restaurant := newTestStorage(t)
	ctx := context.Background()
	table := createTable(t, s, restaurant.ID, "T1", 4, "")

	start := time.Date(2025, 6, 23, 19, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateReservation(ctx, reservationAt(restaurant.ID, table.ID, start, 2*time.Hour)))

	err := s.CreateReservation(ctx, reservationAt(restaurant.ID, table.ID, start.Add(time.Hour), 2*time.Hour))
	assert.ErrorIs(t, err, storage.ErrSlotConflict)

	err = s.CreateReservation(ctx, reservationAt(restaurant.ID, table.ID, start.Add(2*time.Hour-time.Minute), 2*time.Hour))
	assert.ErrorIs(t, err, storage.ErrSlotConflict)

	// Полуинтервал: начало ровно в конце существующего слота не конфликтует
	assert.NoError(t, s.CreateReservation(ctx, reservationAt(restaurant.ID, table.ID, start.Add(2*time.Hour), 2*time.Hour)))
}

func TestCreateReservation_OverlapAcrossGroup(t *testing.T) {
	s, restaurant := newTestStorage(t)
	ctx := context.Background()
	t1 := createTable(t, s, restaurant.ID, "T1", 2, "")
	t2 := createTable(t, s, restaurant.ID, "T2", 2, "")

	start := time.Date(2025, 6, 23, 19, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateReservation(ctx, reservationAt(restaurant.ID, t2.ID, start, 2*time.Hour)))
	require.NoError(t, s.JoinTables(ctx, []string{t1.ID, t2.ID}, "T1-T2"))

	err := s.CreateReservation(ctx, reservationAt(restaurant.ID, t1.ID, start.Add(30*time.Minute), 2*time.Hour))
	assert.ErrorIs(t, err, storage.ErrSlotConflict)
}

func TestReservations_StatusAndReminder(t *testing.T) {
	s, restaurant := newTestStorage(t)
	ctx := context.Background()
	table := createTable(t, s, restaurant.ID, "T1", 4, "")

	start := time.Date(2025, 6, 23, 19, 0, 0, 0, time.UTC)
	r := reservationAt(restaurant.ID, table.ID, start, 2*time.Hour)
	require.NoError(t, s.CreateReservation(ctx, r))

	notSent := false
	pending, err := s.ListReservations(ctx, models.ReservationFilter{Status: models.ReservationPending, ReminderSent: &notSent})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, r.ID, pending[0].ID)
	assert.True(t, pending[0].StartsAt.Equal(start))

	require.NoError(t, s.MarkReminderSent(ctx, r.ID))
	require.NoError(t, s.MarkReminderSent(ctx, r.ID), "marking is idempotent")

	pending, err = s.ListReservations(ctx, models.ReservationFilter{Status: models.ReservationPending, ReminderSent: &notSent})
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, s.UpdateReservationStatus(ctx, r.ID, models.ReservationPending, models.ReservationConfirmed))
	err = s.UpdateReservationStatus(ctx, r.ID, models.ReservationPending, models.ReservationDiscarded)
	assert.ErrorIs(t, err, storage.ErrStatusConflict)

	got, err := s.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, got.Status)
	assert.True(t, got.ReminderSent)

	none, err := s.ListReservations(ctx, models.ReservationFilter{TableIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAdmins_LinkTelegram(t *testing.T) {
	s, restaurant := newTestStorage(t)
	ctx := context.Background()

	first := &models.Admin{RestaurantID: restaurant.ID, Email: "a@example.com", Name: "A"}
	second := &models.Admin{RestaurantID: restaurant.ID, Email: "b@example.com", Name: "B"}
	require.NoError(t, s.CreateAdmin(ctx, first))
	require.NoError(t, s.CreateAdmin(ctx, second))

	require.NoError(t, s.LinkAdminTelegram(ctx, first.ID, 4242, "chef"))
	got, err := s.GetAdminByChatID(ctx, 4242)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	require.NotNil(t, got.TelegramUsername)
	assert.Equal(t, "chef", *got.TelegramUsername)

	// Тот же чат переходит ко второму администратору
	require.NoError(t, s.LinkAdminTelegram(ctx, second.ID, 4242, ""))
	got, err = s.GetAdminByChatID(ctx, 4242)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	require.NoError(t, s.SetAdminLanguage(ctx, second.ID, "pt"))
	admins, err := s.ListAdmins(ctx, restaurant.ID)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	for _, a := range admins {
		if a.ID == first.ID {
			assert.False(t, a.HasTelegram())
			assert.Equal(t, "en", a.Language)
		} else {
			assert.True(t, a.HasTelegram())
			assert.Equal(t, "pt", a.Language)
		}
	}

	assert.ErrorIs(t, s.LinkAdminTelegram(ctx, "missing", 1, ""), storage.ErrNotFound)
}
