package redis

import "strings"

type keys struct {
	// Ensure prefix ends with `:`
	prefix string
}

func newKeys(prefix string) *keys {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	return &keys{prefix: prefix}
}

func (k *keys) instanceKeyPrefix() string {
	return k.prefix + "instance:"
}

// instanceKey returns the key of the HASH holding the record of the given instance
func (k *keys) instanceKey(instanceID string) string {
	return k.instanceKeyPrefix() + instanceID
}

// instancesActive returns the key for the SET containing the ids of all instances that have not finished
func (k *keys) instancesActive() string {
	return k.prefix + "instances-active"
}

// instancesFinished returns the key for the ZSET containing all finished instances. The score is the
// completion time in unix milliseconds.
func (k *keys) instancesFinished() string {
	return k.prefix + "instances-finished"
}

// instancesExpiring returns the key for the ZSET of finished instances with an expiration. The score is
// the expiration time in unix milliseconds.
func (k *keys) instancesExpiring() string {
	return k.prefix + "instances-expiring"
}
