package tables

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/region23/tablebook/internal/storage"
	"github.com/region23/tablebook/internal/storage/models"
	apperrors "github.com/region23/tablebook/pkg/errors"
	"github.com/region23/tablebook/pkg/logger"
	"github.com/region23/tablebook/pkg/metrics"
)

const (
	minJoinSize = 2

	// createAttempts ограничивает повторы при гонке автоматических имен
	createAttempts = 3
)

var tableNamePattern = regexp.MustCompile(`^T(\d+)$`)

// Engine управляет столами и их объединением в группы
type Engine struct {
	repo   storage.TableRepository
	logger *logger.Logger
}

// NewEngine создает движок групп столов
func NewEngine(repo storage.TableRepository, log *logger.Logger) *Engine {
	return &Engine{
		repo:   repo,
		logger: log.Component("tables"),
	}
}

// Join объединяет столы ресторана в группу
func (e *Engine) Join(ctx context.Context, restaurantID string, names []string) (*JoinedGroup, error) {
	names = uniqueNames(names)
	if len(names) < minJoinSize {
		e.recordJoin("rejected")
		return nil, apperrors.ErrInsufficientTables
	}

	all, err := e.repo.ListTables(ctx, models.TableFilter{RestaurantID: restaurantID})
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to list tables: %w", err))
	}
	byName := make(map[string]*models.Table, len(all))
	for _, t := range all {
		byName[t.Name] = t
	}

	members := make([]*models.Table, 0, len(names))
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			e.recordJoin("rejected")
			return nil, apperrors.ErrTableNotFound.
				WithMessage("table %s not found", name).
				WithContext(map[string]string{"table": name})
		}
		members = append(members, t)
	}

	for _, t := range members {
		if t.Status != models.TableAvailable {
			e.recordJoin("rejected")
			return nil, apperrors.ErrTableUnavailable.
				WithMessage("table %s is %s", t.Name, t.Status).
				WithContext(map[string]string{"table": t.Name, "status": string(t.Status)})
		}
	}

	for _, t := range members {
		if t.IsJoined {
			e.recordJoin("rejected")
			return nil, apperrors.ErrAlreadyJoined.
				WithMessage("table %s is already joined", t.Name).
				WithContext(map[string]string{"table": t.Name, "joined_group_id": t.GroupID()})
		}
	}

	locations := make(map[string]struct{})
	for _, t := range members {
		if t.Location != nil {
			locations[*t.Location] = struct{}{}
		}
	}
	if len(locations) > 1 {
		e.recordJoin("rejected")
		return nil, apperrors.ErrLocationMismatch.WithContext(map[string][]string{"locations": sortedKeys(locations)})
	}

	groupID := GroupID(names)
	for _, t := range all {
		if t.GroupID() == groupID {
			e.recordJoin("rejected")
			return nil, apperrors.ErrAlreadyJoined.
				WithMessage("group %s already exists", groupID).
				WithContext(map[string]string{"joined_group_id": groupID, "table": t.Name})
		}
	}
	ids := make([]string, 0, len(members))
	for _, t := range members {
		ids = append(ids, t.ID)
	}

	if err := e.repo.JoinTables(ctx, ids, groupID); err != nil {
		if errors.Is(err, storage.ErrJoinConflict) {
			e.recordJoin("conflict")
			e.logger.Warn("Join lost a concurrent update",
				logger.String("restaurant_id", restaurantID),
				logger.String("group_id", groupID))
			return nil, apperrors.ErrAlreadyJoined.
				WithMessage("one of the tables was changed concurrently").
				WithContext(map[string][]string{"tables": names})
		}
		e.recordJoin("error")
		return nil, apperrors.Upstream(fmt.Errorf("failed to join tables: %w", err))
	}

	for _, t := range members {
		t.IsJoined = true
		t.JoinedGroupID = &groupID
	}
	group := newGroup(groupID, members)
	group.Status = models.TableAvailable

	e.recordJoin("success")
	e.logger.Info("Tables joined",
		logger.String("restaurant_id", restaurantID),
		logger.String("group_id", groupID),
		logger.Int("capacity", group.Capacity))

	return group, nil
}

// Unjoin расформировывает группу и возвращает столы
func (e *Engine) Unjoin(ctx context.Context, restaurantID, groupID string) ([]*models.Table, error) {
	if groupID == "" {
		return nil, apperrors.Validation("joined_group_id is required")
	}

	members, err := e.repo.ListTables(ctx, models.TableFilter{
		RestaurantID:  restaurantID,
		JoinedGroupID: groupID,
	})
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to list group members: %w", err))
	}
	if len(members) == 0 {
		metrics.RecordTableGroupOperation("unjoin", "not_found")
		return nil, apperrors.ErrGroupNotFound.WithContext(map[string]string{"joined_group_id": groupID})
	}

	if err := e.release(ctx, members); err != nil {
		metrics.RecordTableGroupOperation("unjoin", "error")
		return nil, apperrors.Upstream(err)
	}

	metrics.RecordTableGroupOperation("unjoin", "success")
	e.logger.Info("Tables unjoined",
		logger.String("restaurant_id", restaurantID),
		logger.String("group_id", groupID),
		logger.Int("tables", len(members)))

	sortByName(members)
	return members, nil
}

// release снимает признак группы со столов
func (e *Engine) release(ctx context.Context, members []*models.Table) error {
	ids := make([]string, 0, len(members))
	for _, t := range members {
		ids = append(ids, t.ID)
	}
	if err := e.repo.UnjoinTables(ctx, ids); err != nil {
		return fmt.Errorf("failed to unjoin tables: %w", err)
	}
	for _, t := range members {
		t.IsJoined = false
		t.JoinedGroupID = nil
	}
	return nil
}

// ListUnits возвращает отдельные столы и группы ресторана по имени.
// Группа из одного стола считается аномалией и расформировывается.
func (e *Engine) ListUnits(ctx context.Context, restaurantID string, filter UnitFilter) ([]Unit, error) {
	all, err := e.repo.ListTables(ctx, models.TableFilter{RestaurantID: restaurantID})
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to list tables: %w", err))
	}

	groups := make(map[string][]*models.Table)
	units := make([]Unit, 0, len(all))
	for _, t := range all {
		if !t.IsJoined || t.GroupID() == "" {
			units = append(units, Unit{Type: UnitIndividual, Table: t})
			continue
		}
		groups[t.GroupID()] = append(groups[t.GroupID()], t)
	}

	for id, members := range groups {
		if len(members) == 1 {
			e.heal(ctx, id, members[0])
			units = append(units, Unit{Type: UnitIndividual, Table: members[0]})
			continue
		}
		units = append(units, Unit{Type: UnitJoined, Group: newGroup(id, members)})
	}

	sort.SliceStable(units, func(i, j int) bool {
		return LessName(units[i].SortKey(), units[j].SortKey())
	})

	filtered := units[:0]
	for _, u := range units {
		if filter.match(u) {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

// heal возвращает единственный оставшийся стол группы в индивидуальное состояние
func (e *Engine) heal(ctx context.Context, groupID string, t *models.Table) {
	e.logger.Warn("Dissolving single-member group",
		logger.String("group_id", groupID),
		logger.String("table", t.Name))

	if err := e.release(ctx, []*models.Table{t}); err != nil {
		metrics.RecordError("tables", "heal")
		e.logger.Error("Failed to dissolve single-member group",
			logger.String("group_id", groupID),
			logger.Error(err))
		t.IsJoined = false
		t.JoinedGroupID = nil
		return
	}
	metrics.RecordTableGroupOperation("heal", "success")
}

// NextTableName возвращает следующее имя вида T<n> без заполнения пропусков
func (e *Engine) NextTableName(ctx context.Context, restaurantID string) (string, error) {
	all, err := e.repo.ListTables(ctx, models.TableFilter{RestaurantID: restaurantID})
	if err != nil {
		return "", apperrors.Upstream(fmt.Errorf("failed to list tables: %w", err))
	}
	return nextName(all), nil
}

func nextName(tables []*models.Table) string {
	highest := 0
	for _, t := range tables {
		n, ok := tableNumber(t.Name)
		if !ok {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return "T" + strconv.Itoa(highest+1)
}

// CreateTable создает стол; пустое имя генерируется автоматически
func (e *Engine) CreateTable(ctx context.Context, t *models.Table) error {
	if t.Capacity <= 0 {
		return apperrors.Validation("capacity must be a positive integer")
	}
	if t.Status == "" {
		t.Status = models.TableAvailable
	}
	if !t.Status.Valid() {
		return apperrors.Validation("invalid table status %q", t.Status)
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name != "" && !models.ValidTableName(t.Name) {
		return errInvalidTableName(t.Name)
	}
	t.IsJoined = false
	t.JoinedGroupID = nil

	autoName := t.Name == ""
	for attempt := 1; ; attempt++ {
		if autoName {
			name, err := e.NextTableName(ctx, t.RestaurantID)
			if err != nil {
				return err
			}
			t.Name = name
		}

		err := e.repo.CreateTable(ctx, t)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return apperrors.Upstream(fmt.Errorf("failed to create table: %w", err))
		}
		if !autoName || attempt >= createAttempts {
			return apperrors.ErrDuplicateTableName.
				WithMessage("table %s already exists", t.Name).
				WithContext(map[string]string{"table": t.Name})
		}
	}

	e.logger.Info("Table created",
		logger.String("restaurant_id", t.RestaurantID),
		logger.String("table", t.Name),
		logger.Int("capacity", t.Capacity))
	return nil
}

// UpdateTable частично обновляет стол
func (e *Engine) UpdateTable(ctx context.Context, id string, patch models.TablePatch) (*models.Table, error) {
	current, err := e.getTable(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if !models.ValidTableName(name) {
			return nil, errInvalidTableName(name)
		}
		if current.IsJoined && name != current.Name {
			return nil, apperrors.ErrTableJoined.
				WithMessage("cannot rename table %s while it is joined", current.Name).
				WithContext(map[string]string{"table": current.Name, "joined_group_id": current.GroupID()})
		}
		patch.Name = &name
	}
	if patch.Capacity != nil && *patch.Capacity <= 0 {
		return nil, apperrors.Validation("capacity must be a positive integer")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperrors.Validation("invalid table status %q", *patch.Status)
	}
	if patch.Empty() {
		return current, nil
	}

	updated, err := e.repo.UpdateTable(ctx, id, patch)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, apperrors.ErrTableNotFound.WithContext(map[string]string{"id": id})
	case errors.Is(err, storage.ErrDuplicate):
		return nil, apperrors.ErrDuplicateTableName.
			WithMessage("table %s already exists", *patch.Name).
			WithContext(map[string]string{"table": *patch.Name})
	case err != nil:
		return nil, apperrors.Upstream(fmt.Errorf("failed to update table: %w", err))
	}
	return updated, nil
}

// DeleteTable удаляет стол. Если стол в группе, вся группа сначала
// расформировывается.
func (e *Engine) DeleteTable(ctx context.Context, id string) error {
	t, err := e.getTable(ctx, id)
	if err != nil {
		return err
	}
	if t.Status == models.TableReserved {
		return apperrors.ErrTableReserved.WithContext(map[string]string{"table": t.Name})
	}

	if t.IsJoined && t.GroupID() != "" {
		members, err := e.repo.ListTables(ctx, models.TableFilter{
			RestaurantID:  t.RestaurantID,
			JoinedGroupID: t.GroupID(),
		})
		if err != nil {
			return apperrors.Upstream(fmt.Errorf("failed to list group members: %w", err))
		}
		if len(members) > 0 {
			if err := e.release(ctx, members); err != nil {
				return apperrors.Upstream(err)
			}
			metrics.RecordTableGroupOperation("unjoin", "success")
			e.logger.Info("Group dissolved before table delete",
				logger.String("group_id", t.GroupID()),
				logger.String("table", t.Name))
		}
	}

	if err := e.repo.DeleteTable(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.ErrTableNotFound.WithContext(map[string]string{"id": id})
		}
		return apperrors.Upstream(fmt.Errorf("failed to delete table: %w", err))
	}

	e.logger.Info("Table deleted",
		logger.String("restaurant_id", t.RestaurantID),
		logger.String("table", t.Name))
	return nil
}

// GetTable возвращает стол по id
func (e *Engine) GetTable(ctx context.Context, id string) (*models.Table, error) {
	return e.getTable(ctx, id)
}

func (e *Engine) getTable(ctx context.Context, id string) (*models.Table, error) {
	t, err := e.repo.GetTable(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.ErrTableNotFound.WithContext(map[string]string{"id": id})
	}
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to get table: %w", err))
	}
	return t, nil
}

func (e *Engine) recordJoin(status string) {
	metrics.RecordTableGroupOperation("join", status)
}

// uniqueNames убирает пробелы, пустые значения и дубликаты
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func errInvalidTableName(name string) *apperrors.AppError {
	return apperrors.Validation("table name must look like T<number>").
		WithContext(map[string]string{"name": name})
}
