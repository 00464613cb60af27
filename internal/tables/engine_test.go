package tables

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/tablebook/internal/storage/models"
	"github.com/region23/tablebook/internal/storage/sqlite"
	apperrors "github.com/region23/tablebook/pkg/errors"
	"github.com/region23/tablebook/pkg/logger"
)

type fixture struct {
	engine     *Engine
	store      *sqlite.SQLiteStorage
	restaurant string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	restaurant := &models.Restaurant{Name: "Casa"}
	require.NoError(t, s.CreateRestaurant(context.Background(), restaurant))

	return &fixture{
		engine:     NewEngine(s, logger.Nop()),
		store:      s,
		restaurant: restaurant.ID,
	}
}

func (f *fixture) table(t *testing.T, name string, capacity int, location string) *models.Table {
	t.Helper()

	table := &models.Table{RestaurantID: f.restaurant, Name: name, Capacity: capacity}
	if location != "" {
		table.Location = &location
	}
	require.NoError(t, f.engine.CreateTable(context.Background(), table))
	return table
}

func (f *fixture) reload(t *testing.T, id string) *models.Table {
	t.Helper()

	table, err := f.store.GetTable(context.Background(), id)
	require.NoError(t, err)
	return table
}

func TestJoin_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.table(t, "T1", 2, "Patio")
	f.table(t, "T2", 4, "Patio")
	f.table(t, "T3", 6, "Patio")

	group, err := f.engine.Join(ctx, f.restaurant, []string{"T2", "T1"})
	require.NoError(t, err)
	assert.Equal(t, "T1-T2", group.ID)
	assert.Equal(t, "T1+T2", group.DisplayName)
	assert.Equal(t, 6, group.Capacity)
	assert.Equal(t, models.TableAvailable, group.Status)
	require.NotNil(t, group.Location)
	assert.Equal(t, "Patio", *group.Location)
	assert.True(t, group.IsJoined)
	require.Len(t, group.Tables, 2)

	_, err = f.engine.Join(ctx, f.restaurant, []string{"T1", "T3"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyJoined)
}

func TestJoin_ValidationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.table(t, "T1", 2, "Patio")
	f.table(t, "T2", 2, "Hall")
	maintenance := &models.Table{RestaurantID: f.restaurant, Name: "T3", Capacity: 2, Status: models.TableMaintenance}
	require.NoError(t, f.engine.CreateTable(ctx, maintenance))
	f.table(t, "T4", 2, "Patio")
	f.table(t, "T5", 2, "Patio")
	_, err := f.engine.Join(ctx, f.restaurant, []string{"T4", "T5"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input []string
		want  *apperrors.AppError
	}{
		{"single table", []string{"T1"}, apperrors.ErrInsufficientTables},
		{"duplicate names collapse", []string{"T1", "T1"}, apperrors.ErrInsufficientTables},
		{"unknown table wins over status", []string{"T3", "T9"}, apperrors.ErrTableNotFound},
		{"maintenance table", []string{"T1", "T3"}, apperrors.ErrTableUnavailable},
		{"already joined", []string{"T1", "T4"}, apperrors.ErrAlreadyJoined},
		{"location mismatch", []string{"T1", "T2"}, apperrors.ErrLocationMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Join(ctx, f.restaurant, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJoin_RejectsTakenGroupID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Имена в обход движка, как у столов, созданных до проверки формата
	for _, name := range []string{"A-B", "C", "A", "B-C"} {
		require.NoError(t, f.store.CreateTable(ctx, &models.Table{RestaurantID: f.restaurant, Name: name, Capacity: 2}))
	}

	group, err := f.engine.Join(ctx, f.restaurant, []string{"A-B", "C"})
	require.NoError(t, err)
	assert.Equal(t, "A-B-C", group.ID)

	_, err = f.engine.Join(ctx, f.restaurant, []string{"A", "B-C"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyJoined)

	units, err := f.engine.ListUnits(ctx, f.restaurant, UnitFilter{})
	require.NoError(t, err)
	require.Len(t, units, 3)
	for _, u := range units {
		if u.IsGroup() {
			assert.Equal(t, 4, u.Capacity())
			assert.Len(t, u.Group.Tables, 2)
		}
	}
}

func TestTableNameFormat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"A-B", "T1-T2", "Bar", "t1"} {
		err := f.engine.CreateTable(ctx, &models.Table{RestaurantID: f.restaurant, Name: name, Capacity: 2})
		assert.ErrorIs(t, err, apperrors.ErrValidation, name)
	}

	t1 := f.table(t, "T1", 2, "")
	for _, name := range []string{"", "B-C", "T2-T3"} {
		_, err := f.engine.UpdateTable(ctx, t1.ID, models.TablePatch{Name: &name})
		assert.ErrorIs(t, err, apperrors.ErrValidation, name)
	}

	renamed := "T10"
	updated, err := f.engine.UpdateTable(ctx, t1.ID, models.TablePatch{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "T10", updated.Name)
}

func TestJoin_NullLocationIsCompatible(t *testing.T) {
	f := newFixture(t)

	f.table(t, "T1", 2, "Patio")
	f.table(t, "T2", 2, "")

	group, err := f.engine.Join(context.Background(), f.restaurant, []string{"T1", "T2"})
	require.NoError(t, err)
	assert.Nil(t, group.Location, "mixed null and set location is not uniform")
}

func TestJoinUnjoin_RestoresTables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t1 := f.table(t, "T1", 2, "Patio")
	t2 := f.table(t, "T2", 4, "")

	group, err := f.engine.Join(ctx, f.restaurant, []string{"T1", "T2"})
	require.NoError(t, err)

	joined := f.reload(t, t1.ID)
	assert.True(t, joined.IsJoined)
	assert.Equal(t, "T1-T2", joined.GroupID())
	assert.Equal(t, 2, joined.Capacity, "member capacity is never rewritten")

	tables, err := f.engine.Unjoin(ctx, f.restaurant, group.ID)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	for _, original := range []*models.Table{t1, t2} {
		got := f.reload(t, original.ID)
		assert.Equal(t, original.Capacity, got.Capacity)
		assert.Equal(t, original.Status, got.Status)
		assert.Equal(t, original.Location, got.Location)
		assert.False(t, got.IsJoined)
		assert.Nil(t, got.JoinedGroupID)
	}

	_, err = f.engine.Unjoin(ctx, f.restaurant, group.ID)
	assert.ErrorIs(t, err, apperrors.ErrGroupNotFound, "second unjoin fails cleanly")
}

func TestListUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.table(t, "T1", 2, "Patio")
	f.table(t, "T2", 4, "Patio")
	f.table(t, "T3", 6, "Hall")
	_, err := f.engine.Join(ctx, f.restaurant, []string{"T1", "T2"})
	require.NoError(t, err)

	units, err := f.engine.ListUnits(ctx, f.restaurant, UnitFilter{})
	require.NoError(t, err)
	require.Len(t, units, 2)

	assert.True(t, units[0].IsGroup())
	assert.Equal(t, "T1+T2", units[0].Name())
	assert.Equal(t, 6, units[0].Capacity())
	assert.Equal(t, "Patio", units[0].Location())
	assert.Len(t, units[0].TableIDs(), 2)

	assert.False(t, units[1].IsGroup())
	assert.Equal(t, "T3", units[1].Name())

	hall, err := f.engine.ListUnits(ctx, f.restaurant, UnitFilter{Location: "Hall"})
	require.NoError(t, err)
	require.Len(t, hall, 1)
	assert.Equal(t, "T3", hall[0].Name())
}

func TestListUnits_HealsSingleMemberGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t1 := f.table(t, "T1", 2, "")
	f.table(t, "T2", 2, "")
	t3 := f.table(t, "T3", 2, "")
	_, err := f.engine.Join(ctx, f.restaurant, []string{"T1", "T3"})
	require.NoError(t, err)

	// Удаляем участника напрямую через хранилище, минуя каскад
	require.NoError(t, f.store.DeleteTable(ctx, t3.ID))

	units, err := f.engine.ListUnits(ctx, f.restaurant, UnitFilter{})
	require.NoError(t, err)
	require.Len(t, units, 2)
	for _, u := range units {
		assert.False(t, u.IsGroup())
	}

	healed := f.reload(t, t1.ID)
	assert.False(t, healed.IsJoined)
	assert.Nil(t, healed.JoinedGroupID)
}

func TestUnit_MarshalJSON(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.table(t, "T1", 2, "")
	f.table(t, "T2", 2, "")
	f.table(t, "T3", 2, "")
	_, err := f.engine.Join(ctx, f.restaurant, []string{"T1", "T2"})
	require.NoError(t, err)

	units, err := f.engine.ListUnits(ctx, f.restaurant, UnitFilter{})
	require.NoError(t, err)

	data, err := json.Marshal(units)
	require.NoError(t, err)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, UnitJoined, decoded[0]["type"])
	assert.Equal(t, "T1-T2", decoded[0]["id"])
	assert.Len(t, decoded[0]["joined_tables"], 2)
	assert.Equal(t, UnitIndividual, decoded[1]["type"])
	assert.Equal(t, "T3", decoded[1]["name"])
}

func TestNextTableName(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{"empty", nil, "T1"},
		{"gaps are not filled", []string{"T1", "T3", "T4"}, "T5"},
		{"non matching names ignored", []string{"Bar", "T2", "T2a", "t9"}, "T3"},
		{"numeric max", []string{"T9", "T10"}, "T11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := make([]*models.Table, 0, len(tt.names))
			for _, n := range tt.names {
				tables = append(tables, &models.Table{Name: n})
			}
			assert.Equal(t, tt.want, nextName(tables))
		})
	}
}

func TestLessName(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"T2", "T10", true},
		{"T10", "T2", false},
		{"T1", "T1", false},
		{"T01", "T1", true},
		{"Bar", "T1", true},
		{"T1", "Bar", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LessName(tt.a, tt.b), "%s < %s", tt.a, tt.b)
	}
}

func TestUnits_OrderedByTableNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.table(t, "T10", 2, "")
	f.table(t, "T2", 2, "")
	f.table(t, "T9", 2, "")
	f.table(t, "T1", 2, "")

	group, err := f.engine.Join(ctx, f.restaurant, []string{"T10", "T2"})
	require.NoError(t, err)
	assert.Equal(t, "T2-T10", group.ID)
	assert.Equal(t, "T2+T10", group.DisplayName)

	units, err := f.engine.ListUnits(ctx, f.restaurant, UnitFilter{})
	require.NoError(t, err)
	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.Name())
	}
	assert.Equal(t, []string{"T1", "T2+T10", "T9"}, names)
}

func TestCreateTable_AutoName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.table(t, "T1", 2, "")
	f.table(t, "T3", 2, "")
	f.table(t, "T4", 2, "")

	auto := &models.Table{RestaurantID: f.restaurant, Capacity: 4}
	require.NoError(t, f.engine.CreateTable(ctx, auto))
	assert.Equal(t, "T5", auto.Name)
	assert.Equal(t, models.TableAvailable, auto.Status)

	dup := &models.Table{RestaurantID: f.restaurant, Name: "T1", Capacity: 2}
	assert.ErrorIs(t, f.engine.CreateTable(ctx, dup), apperrors.ErrDuplicateTableName)

	invalid := &models.Table{RestaurantID: f.restaurant, Capacity: 0}
	assert.ErrorIs(t, f.engine.CreateTable(ctx, invalid), apperrors.ErrValidation)
}

func TestUpdateTable_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t1 := f.table(t, "T1", 2, "")
	f.table(t, "T2", 2, "")
	_, err := f.engine.Join(ctx, f.restaurant, []string{"T1", "T2"})
	require.NoError(t, err)

	rename := "T7"
	_, err = f.engine.UpdateTable(ctx, t1.ID, models.TablePatch{Name: &rename})
	assert.ErrorIs(t, err, apperrors.ErrTableJoined)

	capacity := 8
	updated, err := f.engine.UpdateTable(ctx, t1.ID, models.TablePatch{Capacity: &capacity})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Capacity)

	bad := models.TableStatus("broken")
	_, err = f.engine.UpdateTable(ctx, t1.ID, models.TablePatch{Status: &bad})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.engine.UpdateTable(ctx, "missing", models.TablePatch{Capacity: &capacity})
	assert.ErrorIs(t, err, apperrors.ErrTableNotFound)
}

func TestDeleteTable_CascadesUnjoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t1 := f.table(t, "T1", 2, "")
	t2 := f.table(t, "T2", 4, "")
	t3 := f.table(t, "T3", 6, "")
	_, err := f.engine.Join(ctx, f.restaurant, []string{"T1", "T2", "T3"})
	require.NoError(t, err)

	require.NoError(t, f.engine.DeleteTable(ctx, t2.ID))

	for _, original := range []*models.Table{t1, t3} {
		got := f.reload(t, original.ID)
		assert.False(t, got.IsJoined, "remaining members return to individual")
		assert.Equal(t, original.Capacity, got.Capacity)
	}

	assert.ErrorIs(t, f.engine.DeleteTable(ctx, t2.ID), apperrors.ErrTableNotFound)
}

func TestDeleteTable_ReservedIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reserved := &models.Table{RestaurantID: f.restaurant, Name: "T1", Capacity: 2, Status: models.TableReserved}
	require.NoError(t, f.engine.CreateTable(ctx, reserved))

	assert.ErrorIs(t, f.engine.DeleteTable(ctx, reserved.ID), apperrors.ErrTableReserved)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.table(t, "T1", 2, "Patio")
	f.table(t, "T2", 4, "Patio")
	f.table(t, "T3", 6, "")
	_, err := f.engine.Join(ctx, f.restaurant, []string{"T1", "T2"})
	require.NoError(t, err)

	stats, err := f.engine.Statistics(ctx, f.restaurant)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTables)
	assert.Equal(t, 1, stats.IndividualTables)
	assert.Equal(t, 2, stats.JoinedTables)
	assert.Equal(t, 1, stats.JoinedGroups)
	assert.Equal(t, 12, stats.TotalCapacity)
	assert.InDelta(t, 4.0, stats.AverageCapacity, 0.001)
	assert.Equal(t, 3, stats.ByStatus["available"])
	assert.Equal(t, 2, stats.ByLocation["Patio"])
	assert.Equal(t, 1, stats.ByLocation["unassigned"])
}
