package entity

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Credential представляет одноразовые учетные данные для доступа к экзамену
type Credential struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Username           string     `gorm:"size:100;not null;index" json:"username"`
	UserEmail          string     `gorm:"column:user_email;size:255;not null;default:'';index" json:"user_email"`
	Password           string     `gorm:"size:100;not null" json:"-"`
	TestType           string     `gorm:"size:20;not null;index" json:"test_type"`
	ExamID             *uint      `gorm:"index" json:"exam_id,omitempty"`
	PsychometricTestID *uint      `gorm:"index" json:"psychometric_test_id,omitempty"`
	IsUsed             bool       `gorm:"not null;default:false;index" json:"is_used"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	UsedAt             *time.Time `json:"used_at,omitempty"`
	CreatedAt          time.Time  `gorm:"index" json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Credential) TableName() string {
	return "exam_credentials"
}

// IsHashed reports whether the stored password is a bcrypt hash.
func (c *Credential) IsHashed() bool {
	return strings.HasPrefix(c.Password, "$2a$") ||
		strings.HasPrefix(c.Password, "$2b$") ||
		strings.HasPrefix(c.Password, "$2y$")
}

// CheckPassword compares password with the stored value. Rows imported before
// hashing was introduced still carry the plain password.
func (c *Credential) CheckPassword(password string) bool {
	if c.IsHashed() {
		return bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(password)) == nil
	}
	return c.Password != "" && c.Password == password
}

// HashPassword replaces a plain password with its bcrypt hash.
func (c *Credential) HashPassword() error {
	if c.Password == "" || c.IsHashed() {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.Password = string(hashed)
	return nil
}

// TargetID returns the exam or psychometric test the credential is bound to.
func (c *Credential) TargetID() *uint {
	if c.TestType == TestTypePsychometric {
		return c.PsychometricTestID
	}
	return c.ExamID
}
