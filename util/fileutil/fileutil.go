package fileutil

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// SwordHome returns the absolute path to the swordv3 root directory,
// which contains source, config and test files. You can set this
// explicitly by defining an environment variable called SWORDV3_HOME.
// Otherwise, this walks up from the current working directory until
// it finds the directory holding go.mod. If neither works, this
// returns an error.
func SwordHome() (swordHome string, err error) {
	swordHome = os.Getenv("SWORDV3_HOME")
	if swordHome == "" {
		dir, err := os.Getwd()
		if err != nil {
			return "", err
		}
		for {
			if FileExists(filepath.Join(dir, "go.mod")) {
				swordHome = dir
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				return "", fmt.Errorf("Cannot determine swordv3 home because " +
					"SWORDV3_HOME is not set and no go.mod was found above the " +
					"working directory.")
			}
			dir = parent
		}
	}
	return filepath.Abs(swordHome)
}

// LoadRelativeFile reads the file at the specified path
// relative to SWORDV3_HOME and returns the contents as a byte array.
func LoadRelativeFile(relativePath string) ([]byte, error) {
	absPath, err := RelativeToAbsPath(relativePath)
	if err != nil {
		return nil, err
	}
	return ioutil.ReadFile(absPath)
}

// Converts a relative path within the swordv3 directory tree
// to an absolute path.
func RelativeToAbsPath(relativePath string) (string, error) {
	if filepath.IsAbs(relativePath) {
		return relativePath, nil
	}
	swordHome, err := SwordHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(swordHome, relativePath), nil
}

// Returns true if the file at path exists, false if not.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	if err != nil && os.IsNotExist(err) {
		return false
	}
	return true
}

// Expands the tilde in a directory path to the current
// user's home directory. For example, on Linux, ~/data
// would expand to something like /home/josie/data
func ExpandTilde(filePath string) (string, error) {
	if strings.Index(filePath, "~") < 0 {
		return filePath, nil
	}
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	homeDir := usr.HomeDir + "/"
	expandedDir := strings.Replace(filePath, "~/", homeDir, 1)
	return expandedDir, nil
}

// Returns true if the path specified by dir has at least minLength
// characters and at least minSeparators path separators. This is
// for testing paths you want pass into os.Remove(), so you don't
// wind up deleting "/" or "/etc" or something catastrophic like that.
func LooksSafeToDelete(dir string, minLength, minSeparators int) bool {
	separator := string(os.PathSeparator)
	separatorCount := (len(dir) - len(strings.Replace(dir, separator, "", -1)))
	return len(dir) >= minLength && separatorCount >= minSeparators
}
