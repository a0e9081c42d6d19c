package util

import (
	"strconv"
	"time"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// ParseDate 按 DateFormat 解析日期，空字符串返回 nil
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateFormat, s, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
