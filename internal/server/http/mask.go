package httpserver

import (
	"regexp"
	"strings"
)

var (
	emailMaskRe = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)
	phoneMaskRe = regexp.MustCompile(`^(\+?\d{1,3})(\d{4,})(\d{4})$`)
)

// MaskEmail keeps the first three characters and the domain: joh***@x.com.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	if m := emailMaskRe.FindStringSubmatch(email); len(m) == 3 {
		return m[1] + "***" + m[2]
	}
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return "***" + email[i:]
	}
	return "***"
}

// MaskPhone keeps the country code and the last four digits: +234***5678.
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	if m := phoneMaskRe.FindStringSubmatch(phone); len(m) == 4 {
		return m[1] + "***" + m[3]
	}
	if len(phone) > 4 {
		return "***" + phone[len(phone)-4:]
	}
	return "***"
}

// MaskIP keeps the first two IPv4 octets or the first four IPv6 groups.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	if strings.Contains(ip, ".") {
		if parts := strings.Split(ip, "."); len(parts) == 4 {
			return parts[0] + "." + parts[1] + ".*.*"
		}
	}
	if strings.Contains(ip, ":") {
		if parts := strings.Split(ip, ":"); len(parts) >= 4 {
			return strings.Join(parts[:4], ":") + ":*:*:*:*"
		}
	}
	return "***"
}
