package config

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDefault = []byte("Default")
	bucketCurrent = []byte("Current")
)

// Store persists Default and Current configuration snapshots in an
// embedded bbolt database, replacing the reference stack's flat
// Default.txt/Current.txt files with named-key buckets while preserving
// the same two logical snapshots SPEC_FULL §6.4 describes.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the bbolt database at path, ensuring both buckets
// exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("config: opening store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDefault, bucketCurrent} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("config: initializing buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveDefault persists c as the Default snapshot.
func (s *Store) SaveDefault(c Config) error { return s.save(bucketDefault, c) }

// SaveCurrent persists c as the Current snapshot, called whenever the
// controller records a configuration change (e.g. on Reconfig exit).
func (s *Store) SaveCurrent(c Config) error { return s.save(bucketCurrent, c) }

// LoadDefault reads the Default snapshot.
func (s *Store) LoadDefault() (Config, error) { return s.load(bucketDefault) }

// LoadCurrent reads the Current snapshot.
func (s *Store) LoadCurrent() (Config, error) { return s.load(bucketCurrent) }

func (s *Store) save(bucket []byte, c Config) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		put8 := func(k string, v uint8) error { return b.Put([]byte(k), []byte{v}) }
		putInt := func(k string, v int) error {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			return b.Put([]byte(k), buf[:])
		}
		if err := put8("role", uint8(c.Role)); err != nil {
			return err
		}
		if err := put8("current_mac_address", c.CurrentMacAddress); err != nil {
			return err
		}
		if err := put8("numerology", c.Numerology); err != nil {
			return err
		}
		if err := put8("waveform_kind", c.WaveformKind); err != nil {
			return err
		}
		if err := put8("default_fusion_lut", c.DefaultFusionLUT); err != nil {
			return err
		}
		if err := put8("rx_metric_periodicity", c.RxMetricPeriodicity); err != nil {
			return err
		}
		if err := putInt("mtu", c.MTU); err != nil {
			return err
		}
		if err := putInt("ip_timeout_ns", int(c.IPTimeout)); err != nil {
			return err
		}
		if err := putInt("ss_report_wait", c.SSReportWait); err != nil {
			return err
		}
		return putInt("phy_ready_ns", int(c.PHYReady))
	})
}

func (s *Store) load(bucket []byte) (Config, error) {
	var c Config
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		get8 := func(k string) uint8 {
			v := b.Get([]byte(k))
			if len(v) != 1 {
				return 0
			}
			return v[0]
		}
		getInt := func(k string) int {
			v := b.Get([]byte(k))
			if len(v) != 8 {
				return 0
			}
			return int(binary.LittleEndian.Uint64(v))
		}
		c.Role = Role(get8("role"))
		c.CurrentMacAddress = get8("current_mac_address")
		c.Numerology = get8("numerology")
		c.WaveformKind = get8("waveform_kind")
		c.DefaultFusionLUT = get8("default_fusion_lut")
		c.RxMetricPeriodicity = get8("rx_metric_periodicity")
		c.MTU = getInt("mtu")
		c.IPTimeout = timeDuration(getInt("ip_timeout_ns"))
		c.SSReportWait = getInt("ss_report_wait")
		c.PHYReady = timeDuration(getInt("phy_ready_ns"))
		return nil
	})
	return c, err
}

// SaveLegacyText writes c as line-oriented text, one "key value" pair per
// field, kept as an interoperability path alongside the bbolt-backed Store.
// It is a named-field format, not a positional one-value-per-line layout.
func SaveLegacyText(path string, c Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: writing legacy text: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "role %s\n", c.Role)
	fmt.Fprintf(w, "current_mac_address %d\n", c.CurrentMacAddress)
	fmt.Fprintf(w, "numerology %d\n", c.Numerology)
	fmt.Fprintf(w, "waveform_kind %d\n", c.WaveformKind)
	fmt.Fprintf(w, "default_fusion_lut %d\n", c.DefaultFusionLUT)
	fmt.Fprintf(w, "rx_metric_periodicity %d\n", c.RxMetricPeriodicity)
	fmt.Fprintf(w, "mtu %d\n", c.MTU)
	fmt.Fprintf(w, "ip_timeout_ns %d\n", c.IPTimeout)
	fmt.Fprintf(w, "ss_report_wait %d\n", c.SSReportWait)
	fmt.Fprintf(w, "phy_ready_ns %d\n", c.PHYReady)
	return w.Flush()
}

// LoadLegacyText reads the line-oriented format written by SaveLegacyText.
func LoadLegacyText(path string) (Config, error) {
	var c Config
	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("config: reading legacy text: %w", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			continue
		}
		key, val := fields[0], fields[1]
		switch key {
		case "role":
			if val == "UE" {
				c.Role = RoleUE
			}
		case "current_mac_address":
			c.CurrentMacAddress = parseU8(val)
		case "numerology":
			c.Numerology = parseU8(val)
		case "waveform_kind":
			c.WaveformKind = parseU8(val)
		case "default_fusion_lut":
			c.DefaultFusionLUT = parseU8(val)
		case "rx_metric_periodicity":
			c.RxMetricPeriodicity = parseU8(val)
		case "mtu":
			c.MTU, _ = strconv.Atoi(val)
		case "ip_timeout_ns":
			n, _ := strconv.Atoi(val)
			c.IPTimeout = timeDuration(n)
		case "ss_report_wait":
			c.SSReportWait, _ = strconv.Atoi(val)
		case "phy_ready_ns":
			n, _ := strconv.Atoi(val)
			c.PHYReady = timeDuration(n)
		}
	}
	return c, sc.Err()
}

func parseU8(s string) uint8 {
	n, _ := strconv.Atoi(s)
	return uint8(n)
}
