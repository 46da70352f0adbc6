package common

const Version = "1.0.0"
const UserAgent = "membuf/" + Version
