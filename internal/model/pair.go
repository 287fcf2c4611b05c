package model

import "fmt"

// PairKey 无序用户对的规范化键 "小ID:大ID"
// 连接和会话表在该列上建唯一索引，(a,b) 与 (b,a) 落到同一行
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
