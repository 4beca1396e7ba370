package contracts

// Exchanges
const (
	ExchangeNotifyTopic    = "notify_topic"
	ExchangeLocationFanout = "location_fanout"
)

// Queues
const (
	QueueNotifications   = "realtime_notifications"
	QueueLocationArchive = "location_updates_archive"
)

// Routing patterns
const (
	RouteNotifyUserPrefix = "notify.user." // {identity_id}
	RouteNotifyRoomPrefix = "notify.room." // {room_name}
	RouteNotifyRolePrefix = "notify.role." // {role}
)

// Client -> server event names.
const (
	EventAuth              = "auth"
	EventPing              = "ping"
	EventDriverAvailable   = "driver_available"
	EventDriverUnavailable = "driver_unavailable"
	EventLocationUpdate    = "location_update"
	EventTrackDriver       = "track_driver"
	EventStopTracking      = "stop_tracking"
	EventJoinRide          = "join_ride"
	EventLeaveRide         = "leave_ride"
	EventRideMessage       = "ride_message"
)

// Server -> client event names.
const (
	EventAuthSuccess    = "auth_success"
	EventAuthError      = "auth_error"
	EventPong           = "pong"
	EventDriverLocation = "driver_location"
	EventNewMessage     = "new_message"
	EventError          = "error"
)
