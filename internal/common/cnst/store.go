package cnst

// StoreType selects the session store backend
type StoreType string

const (
	StoreTypeDB        StoreType = "db"
	StoreTypeRedis     StoreType = "redis"
	StoreTypeNoop      StoreType = "noop"
	StoreTypeMemcached StoreType = "memcached" // placeholder alias of noop
)

const (
	DatabaseTypeMySQL    = "mysql"
	DatabaseTypePostgres = "postgres"
	DatabaseTypeSQLite   = "sqlite"
)

// DefaultSessionTable is the table holding connected sessions
const DefaultSessionTable = "sockets"
