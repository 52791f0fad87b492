package config

// Backend is the persistent store behind `siampass config set`. Values are
// typed; a key that was never written reports ok == false.
type Backend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetBool(key string) (val bool, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetBool(key string, val bool) error
	Delete(key string) error
}

// secretService namespaces siampass credentials in the platform secret store.
const secretService = "siampass"
