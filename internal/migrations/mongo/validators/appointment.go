package validators

import "go.mongodb.org/mongo-driver/bson"

var AppointmentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"patient_name",
			"patient_id",
			"doctor_id",
			"doctor_name",
			"time",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"patient_name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"patient_id": bson.M{
				"bsonType": "string",
			},

			"doctor_id": bson.M{
				"bsonType": "string",
			},

			"doctor_name": bson.M{
				"bsonType": "string",
			},

			"time": bson.M{
				"bsonType": "string",
			},

			"date": bson.M{
				"bsonType": "string",
			},

			"formatted_date": bson.M{
				"bsonType": "object",
				"required": []string{"year", "month", "day", "iso"},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"upcoming",
					"completed",
					"cancelled",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"last_updated": bson.M{
				"bsonType": "date",
			},
		},
	},
}
