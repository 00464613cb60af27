package tables

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/region23/tablebook/internal/storage/models"
)

// Типы бронируемых единиц
const (
	UnitIndividual = "individual"
	UnitJoined     = "joined_group"
)

// JoinedGroup представляет объединенную группу столов. Группа не хранится
// отдельно и вычисляется из столов с общим joined_group_id.
type JoinedGroup struct {
	ID          string             `json:"id"`
	DisplayName string             `json:"display_name"`
	Capacity    int                `json:"capacity"`
	Status      models.TableStatus `json:"status"`
	Location    *string            `json:"location"`
	IsJoined    bool               `json:"is_joined"`
	Tables      []*models.Table    `json:"joined_tables"`
}

// newGroup собирает группу из членов; члены сортируются по имени
func newGroup(id string, members []*models.Table) *JoinedGroup {
	sorted := make([]*models.Table, len(members))
	copy(sorted, members)
	sortByName(sorted)

	names := make([]string, 0, len(sorted))
	capacity := 0
	for _, t := range sorted {
		names = append(names, t.Name)
		capacity += t.Capacity
	}

	var status models.TableStatus
	if len(sorted) > 0 {
		status = sorted[0].Status
	}

	return &JoinedGroup{
		ID:          id,
		DisplayName: strings.Join(names, "+"),
		Capacity:    capacity,
		Status:      status,
		Location:    commonLocation(sorted),
		IsJoined:    true,
		Tables:      sorted,
	}
}

// GroupID вычисляет ключ группы по именам столов
func GroupID(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.SliceStable(sorted, func(i, j int) bool {
		return LessName(sorted[i], sorted[j])
	})
	return strings.Join(sorted, "-")
}

// commonLocation возвращает зону, если она одинакова у всех столов
func commonLocation(tables []*models.Table) *string {
	if len(tables) == 0 || tables[0].Location == nil {
		return nil
	}
	first := *tables[0].Location
	for _, t := range tables[1:] {
		if t.Location == nil || *t.Location != first {
			return nil
		}
	}
	return &first
}

func sortByName(tables []*models.Table) {
	sort.SliceStable(tables, func(i, j int) bool {
		return LessName(tables[i].Name, tables[j].Name)
	})
}

// LessName сравнивает имена столов: имена вида T<n> упорядочены по номеру
// (T2 раньше T10), остальные по строке
func LessName(a, b string) bool {
	na, okA := tableNumber(a)
	nb, okB := tableNumber(b)
	if okA && okB && na != nb {
		return na < nb
	}
	return a < b
}

func tableNumber(name string) (int, bool) {
	m := tableNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Unit представляет бронируемую единицу: отдельный стол или группу
type Unit struct {
	Type  string
	Table *models.Table
	Group *JoinedGroup
}

// IsGroup проверяет, является ли единица группой
func (u Unit) IsGroup() bool {
	return u.Group != nil
}

// Name возвращает отображаемое имя единицы
func (u Unit) Name() string {
	if u.Group != nil {
		return u.Group.DisplayName
	}
	return u.Table.Name
}

// SortKey возвращает имя первого стола единицы
func (u Unit) SortKey() string {
	if u.Group != nil {
		if len(u.Group.Tables) == 0 {
			return u.Group.ID
		}
		return u.Group.Tables[0].Name
	}
	return u.Table.Name
}

// Capacity возвращает вместимость единицы
func (u Unit) Capacity() int {
	if u.Group != nil {
		return u.Group.Capacity
	}
	return u.Table.Capacity
}

// Status возвращает статус единицы
func (u Unit) Status() models.TableStatus {
	if u.Group != nil {
		return u.Group.Status
	}
	return u.Table.Status
}

// Location возвращает зону единицы или пустую строку
func (u Unit) Location() string {
	if u.Group != nil {
		if u.Group.Location == nil {
			return ""
		}
		return *u.Group.Location
	}
	return u.Table.LocationValue()
}

// TableIDs возвращает id всех столов единицы
func (u Unit) TableIDs() []string {
	if u.Group == nil {
		return []string{u.Table.ID}
	}
	ids := make([]string, 0, len(u.Group.Tables))
	for _, t := range u.Group.Tables {
		ids = append(ids, t.ID)
	}
	return ids
}

// PrimaryTableID возвращает стол, на который записывается бронь
func (u Unit) PrimaryTableID() string {
	if u.Group == nil {
		return u.Table.ID
	}
	return u.Group.Tables[0].ID
}

// MarshalJSON выводит стол или группу с полем type
func (u Unit) MarshalJSON() ([]byte, error) {
	if u.Group != nil {
		return json.Marshal(struct {
			Type string `json:"type"`
			*JoinedGroup
		}{Type: UnitJoined, JoinedGroup: u.Group})
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		*models.Table
	}{Type: UnitIndividual, Table: u.Table})
}

// UnitFilter задает фильтры, применяемые к единицам после группировки
type UnitFilter struct {
	Status   models.TableStatus
	Location string
}

func (f UnitFilter) match(u Unit) bool {
	if f.Status != "" && u.Status() != f.Status {
		return false
	}
	if f.Location != "" && u.Location() != f.Location {
		return false
	}
	return true
}
