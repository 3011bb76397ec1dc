// Package utils 通用小工具，不依赖 internal
package utils

import "strings"

// CoalesceString 返回第一个非空字符串
func CoalesceString(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

// TrimTrailingSlashes 去掉末尾所有的 '/'（"https://a.com///" -> "https://a.com"）
func TrimTrailingSlashes(s string) string {
	return strings.TrimRight(s, "/")
}
