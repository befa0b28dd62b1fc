package model

// Role роль принципала. Уровни упорядочены: чем выше, тем больше прав
type Role string

const (
	RoleTeacher    Role = "teacher"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
)

// roleOrder задаёт полный порядок ролей, новые роли вставляются сюда
var roleOrder = []Role{RoleTeacher, RoleAdmin, RoleSuperAdmin}

// Level возвращает уровень роли, 0 для неизвестной
func (r Role) Level() int {
	for i, role := range roleOrder {
		if role == r {
			return i + 1
		}
	}
	return 0
}

// IsKnown проверяет что роль есть в иерархии
func (r Role) IsKnown() bool {
	return r.Level() > 0
}

// AtLeast сравнивает роль с минимально требуемой
func (r Role) AtLeast(min Role) bool {
	return r.IsKnown() && min.IsKnown() && r.Level() >= min.Level()
}

// Outranks строго старше другой роли
func (r Role) Outranks(other Role) bool {
	return r.IsKnown() && r.Level() > other.Level()
}

// IsAdmin admin или superAdmin
func (r Role) IsAdmin() bool {
	return r.AtLeast(RoleAdmin)
}
