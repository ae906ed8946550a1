package data

import (
	"reflect"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/probeworks/apiprobe/internal/core"
)

var (
	_ core.ApiConfigRepository      = (*ApiConfigRepo)(nil)
	_ core.GlobalVariableRepository = (*GlobalVariableRepo)(nil)
	_ core.ConnectionRepository     = (*ConnectionRepo)(nil)
	_ core.ReportRepository         = (*ReportRepo)(nil)
	_ core.ScheduledTaskRepository  = (*ScheduledTaskRepo)(nil)
)

func exportedMethods(v any) []string {
	t := reflect.TypeOf(v)
	names := make([]string, 0, t.NumMethod())
	for i := range t.NumMethod() {
		names = append(names, t.Method(i).Name)
	}
	slices.Sort(names)
	return names
}

// Repos grow methods easily during schema work; this pins each exported
// surface so additions show up in review instead of slipping in silently.
func TestRepoExportedSurfaces(t *testing.T) {
	tests := []struct {
		name string
		repo any
		want []string
	}{
		{"ApiConfigRepo", &ApiConfigRepo{}, []string{
			"Create", "GetByID", "List", "ListByIDs",
		}},
		{"GlobalVariableRepo", &GlobalVariableRepo{}, []string{
			"Delete", "GetByName", "List", "Upsert",
		}},
		{"ConnectionRepo", &ConnectionRepo{}, []string{
			"CreateDatabaseConfig", "CreateEmailConfig", "CreateRedisConfig",
			"GetActiveEmailConfig", "GetDatabaseConfig", "GetRedisConfig",
			"ListEmailConfigs",
		}},
		{"ReportRepo", &ReportRepo{}, []string{
			"AddResult", "CreateReport", "FinalizeReport",
			"GetReport", "ListReports", "ListResults",
		}},
		{"ScheduledTaskRepo", &ScheduledTaskRepo{}, []string{
			"Create", "GetByID", "List", "ListActive", "RecordRun", "UpdateStatus",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, exportedMethods(tt.repo)); diff != "" {
				t.Errorf("exported method set mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
