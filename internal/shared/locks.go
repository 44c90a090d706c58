package shared

// RelayLockKey builds the redis key guarding the outbox relay critical section.
func RelayLockKey() string {
	return "outbox:relay:lock"
}
