package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// BuildSessionSignature derives a session id for events that arrive without one.
// It rotates daily at midnight UTC so a visitor cannot be followed across days.
// The IP address is only hashed, never stored.
func BuildSessionSignature(scope, ipAddress, userAgent, salt string) string {
	return buildSignature(time.Now().UTC(), scope, ipAddress, userAgent, salt)
}

func buildSignature(now time.Time, scope, ipAddress, userAgent, salt string) string {
	dailySalt := fmt.Sprintf("%s-%s", now.Format("2006-01-02"), salt)
	data := fmt.Sprintf("%s.%s.%s.%s", dailySalt, scope, ipAddress, userAgent)

	hash := sha256.Sum256([]byte(data))
	return "srv-" + hex.EncodeToString(hash[:16])
}
