package cache

import "fmt"

// Key grammar shared by every writer that touches document listings. A
// mutation that changes a document's status or department links must
// invalidate AllDocsKey plus the department and access keys of every
// affected department.
const AllDocsKey = "docs:all"

func DepartmentKey(departmentID int64) string {
	return fmt.Sprintf("docs:department:%d", departmentID)
}

func AccessKey(departmentID int64) string {
	return fmt.Sprintf("docs:access:%d", departmentID)
}

// InvalidationKeys returns the full key set affected by a status or access
// change touching the given departments.
func InvalidationKeys(departmentIDs []int64) []string {
	keys := make([]string, 0, 1+2*len(departmentIDs))
	keys = append(keys, AllDocsKey)
	for _, id := range departmentIDs {
		keys = append(keys, DepartmentKey(id), AccessKey(id))
	}
	return keys
}
