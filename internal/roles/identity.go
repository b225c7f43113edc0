package roles

// Identity: аутентифицированный пользователь с уже разобранной ролью.
// Строится один раз на границе аутентификации и дальше не перечитывается.
type Identity struct {
	UserID      int64
	Role        Role
	DisplayName string
}

func (i Identity) IsAdmin() bool {
	return i.Role == Admin
}

// Descriptor возвращает дескриптор роли пользователя.
func (i Identity) Descriptor() Descriptor {
	return DescriptorFor(i.Role)
}
