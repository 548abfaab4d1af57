package common

// All units are in metric:
// - Speed is in m/s
// - Distance is in meters
// - Time is in seconds

const SpeedOfWalkingMin = 0.23 // or 0.8 km/h or 0.5 mph
const SpeedOfWalkingSlow = 0.5 // or 1.8 km/h or 1.1 mph
const SpeedOfWalkingMean = 1.2 // or 4.3 km/h or 2.7 mph
const SpeedOfWalkingMax = 1.78 // or 6.4 km/h or 4 mph

const SpeedOfRunningMin = 2.23 // or 8 km/h or 5 mph
const SpeedOfRunningMax = 5.56 // or 20 km/h or 12 mph

const SpeedOfDrivingMin = 4.47            // or 16 km/h or 10 mph
const SpeedOfDrivingCityUSMean = 13.9     // or 50 km/h or 31 mph
const SpeedOfDrivingFreeway = 33.33       // or 120 km/h or 75 mph
const SpeedOfDrivingPrettyDamnFast = 44.7 // or 161 km/h or 100 mph
const SpeedOfDrivingAutobahn = 67.06      // or 241 km/h or 150 mph

const SpeedOfCommercialFlight = 250.0 // or 900 km/h

// SpeedOfGroundVehicleImplausible is faster than any ordinary ground vehicle goes.
// Consecutive waypoints implying more than this are GPS jumps.
const SpeedOfGroundVehicleImplausible = 167.67 // or 604 km/h or 375 mph

// SpeedOfStationary is the upper bound (exclusive) of a speed considered not moving.
const SpeedOfStationary = 1.0
