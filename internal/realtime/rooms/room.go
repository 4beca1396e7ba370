package rooms

import (
	"strings"

	"ridelink/internal/domain/user"
)

// Kind discriminates the four room kinds. Constructing rooms through the
// helpers below makes an invalid room name a compile-time problem instead of
// a string-formatting one.
type Kind int

const (
	// KindIdentity is the per-user channel ({role}_{identityId}),
	// auto-joined at connection time.
	KindIdentity Kind = iota
	// KindAvailability is the shared pool drivers toggle in and out of.
	KindAvailability
	// KindRide is a per-ride channel joined by its participants.
	KindRide
	// KindDriverLocation is the subscription channel a driver's position
	// updates are published into.
	KindDriverLocation
)

const availableDriversName = "available_drivers"

// Room names a dynamically-membered multicast group. The zero value is not a
// valid room; use the constructors.
type Room struct {
	Kind Kind
	Key  string
}

// Identity returns the auto-joined per-user room.
func Identity(role user.Role, identityID string) Room {
	return Room{Kind: KindIdentity, Key: role.String() + "_" + identityID}
}

// AvailableDrivers returns the driver availability pool.
func AvailableDrivers() Room {
	return Room{Kind: KindAvailability, Key: availableDriversName}
}

// Ride returns the room shared by a ride's participants.
func Ride(rideID string) Room {
	return Room{Kind: KindRide, Key: rideID}
}

// DriverLocation returns the location-subscription room for one driver.
func DriverLocation(driverID string) Room {
	return Room{Kind: KindDriverLocation, Key: driverID}
}

// Name renders the deterministic wire name of the room.
func (r Room) Name() string {
	switch r.Kind {
	case KindRide:
		return "ride_" + r.Key
	case KindDriverLocation:
		return "driver_location_" + r.Key
	default:
		return r.Key
	}
}

// ParseName reconstructs a Room from its wire name. Used for
// externally-addressed deliveries (notification bridge), where only the name
// travels.
func ParseName(name string) (Room, bool) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return Room{}, false
	case name == availableDriversName:
		return AvailableDrivers(), true
	case strings.HasPrefix(name, "driver_location_"):
		return DriverLocation(strings.TrimPrefix(name, "driver_location_")), true
	case strings.HasPrefix(name, "ride_"):
		return Ride(strings.TrimPrefix(name, "ride_")), true
	default:
		// identity rooms are "{role}_{identityId}"
		role, id, ok := strings.Cut(name, "_")
		parsed, err := user.ParseRole(role)
		if !ok || err != nil || id == "" {
			return Room{}, false
		}
		return Identity(parsed, id), true
	}
}
