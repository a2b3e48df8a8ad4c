package unzipper

// passwordManager 密码管理：把密码数组与压缩包配对，并按格式决定是否传递
type passwordManager struct{}

// newPasswordManager 创建新的密码管理器
func newPasswordManager() *passwordManager {
	return &passwordManager{}
}

// passwordFor TAR 系列不支持加密，传入的密码被忽略
func (pm *passwordManager) passwordFor(format ArchiveFormat, password string) string {
	if !format.SupportsPassword() {
		return ""
	}
	return password
}

// pairPasswords 平行数组：缺失的位置为空密码，多余的密码被丢弃
func (pm *passwordManager) pairPasswords(archivePaths, passwords []string) []string {
	paired := make([]string, len(archivePaths))
	for i := range archivePaths {
		if i < len(passwords) {
			paired[i] = passwords[i]
		}
	}
	return paired
}
