package options

import (
	"os"

	"github.com/joho/godotenv"
	"k8s.io/klog/v2"
)

const DefaultEnvFile = ".env"

// LoadEnv exports the variables of a dotenv file without overriding the
// environment. A missing file is ignored.
func LoadEnv(path string) error {
	if len(path) == 0 {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			klog.V(4).InfoS("Env file not found, skipped", "file", path)
			return nil
		}
		return err
	}
	klog.V(3).InfoS("Succeed to load env file", "file", path)
	return nil
}

// EnvOr returns the value of key, or def when unset or empty.
func EnvOr(key, def string) string {
	if v := os.Getenv(key); len(v) > 0 {
		return v
	}
	return def
}
