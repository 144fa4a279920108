package redis

import "fmt"

const ns = "spinhub:v1"

func KeyClassAvailability(classID int64) string {
	return fmt.Sprintf("%s:class:%d:availability", ns, classID)
}

func KeyClassRoster(classID int64) string {
	return fmt.Sprintf("%s:class:%d:roster", ns, classID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelClassesChanged() string {
	return ns + ":classes:changed"
}
